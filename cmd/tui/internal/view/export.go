package view

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/export"
)

type exportState int

const (
	exportStateLoading exportState = iota
	exportStateForm
	exportStateExporting
	exportStateResult
)

// exportChoice is shared with the form so answers survive model copies.
type exportChoice struct {
	campaignID string
	path       string
	zip        bool
}

type ExportModel struct {
	CommonModel
	registry      *campaign.Service
	exportService *export.Service

	state   exportState
	err     error
	form    *huh.Form
	choice  *exportChoice
	spinner spinner.Model
	summary string
	archive string
}

func NewExportModel(registry *campaign.Service, svc *export.Service) ExportModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return ExportModel{
		registry:      registry,
		exportService: svc,
		state:         exportStateLoading,
		choice:        &exportChoice{path: "./exports", zip: true},
		spinner:       s,
	}
}

func (m ExportModel) Title() string { return "Export Ledger" }

func (m ExportModel) ShortHelp() string {
	switch m.state {
	case exportStateResult:
		return "Esc: back to menu"
	case exportStateExporting:
		return "Exporting..."
	}

	return "Esc: back | Enter: confirm"
}

func (m ExportModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadOptionsCmd())
}

func (m ExportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc && m.state != exportStateExporting {
		return m, Back
	}

	switch m.state {
	case exportStateLoading:
		return m.updateLoading(msg)
	case exportStateForm:
		return m.updateForm(msg)
	case exportStateExporting:
		return m.updateExporting(msg)
	}

	return m, nil
}

func (m ExportModel) updateLoading(msg tea.Msg) (tea.Model, tea.Cmd) {
	if opts, ok := msg.(exportOptionsMsg); ok {
		if opts.err != nil {
			m.state = exportStateResult
			m.err = opts.err

			return m, nil
		}

		if len(opts.options) == 0 {
			m.state = exportStateResult
			m.err = fmt.Errorf("no campaigns to export")

			return m, nil
		}

		m.form = buildExportForm(m.choice, opts.options)
		m.state = exportStateForm

		return m, m.form.Init()
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func (m ExportModel) updateForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	m.state = exportStateExporting
	m.err = nil

	return m, tea.Batch(m.spinner.Tick, m.runExportCmd(*m.choice))
}

func (m ExportModel) updateExporting(msg tea.Msg) (tea.Model, tea.Cmd) {
	if result, ok := msg.(exportResultMsg); ok {
		m.state = exportStateResult
		m.err = result.err
		m.summary = result.body
		m.archive = result.archive

		return m, nil
	}

	var cmd tea.Cmd
	m.spinner, cmd = m.spinner.Update(msg)

	return m, cmd
}

func buildExportForm(choice *exportChoice, options []huh.Option[string]) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("campaign").
				Title("Campaign").
				Options(options...).
				Value(&choice.campaignID),
			huh.NewInput().
				Key("path").
				Title("Output Path").
				Description("Directory will be created if it doesn't exist").
				Placeholder("./exports").
				Value(&choice.path),
			huh.NewConfirm().
				Key("zip").
				Title("Also write a zip archive?").
				Value(&choice.zip),
		),
	).WithWidth(60).WithShowHelp(false)
}

func (m ExportModel) View() string {
	switch m.state {
	case exportStateLoading:
		return lipgloss.NewStyle().Padding(1).Render(fmt.Sprintf("%s Loading campaigns...", m.spinner.View()))

	case exportStateForm:
		return lipgloss.NewStyle().Padding(1).Render(m.form.View())

	case exportStateExporting:
		return lipgloss.NewStyle().Padding(1).Render(
			fmt.Sprintf("%s Writing ledger and collecting payment proofs...", m.spinner.View()),
		)

	case exportStateResult:
		return m.viewResult()
	}

	return ""
}

func (m ExportModel) viewResult() string {
	if m.err != nil {
		return lipgloss.NewStyle().Padding(1).Render(
			lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Error: %v", m.err)),
		)
	}

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("46")).
		Render("Export Complete!")

	lines := []string{header, ""}
	if m.archive != "" {
		lines = append(lines, "Archive: "+m.archive, "")
	}

	lines = append(lines, "Summary:", "", m.summary)

	return lipgloss.NewStyle().Padding(1).Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// Messages

type exportOptionsMsg struct {
	options []huh.Option[string]
	err     error
}

func (m ExportModel) loadOptionsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		page, err := m.registry.List(ctx, campaign.ListFilter{PageSize: campaign.MaxPageSize})
		if err != nil {
			return exportOptionsMsg{err: err}
		}

		options := make([]huh.Option[string], 0, len(page.Items))
		for _, c := range page.Items {
			label := fmt.Sprintf("%s (%s, %s)", c.Title, c.Status, FormatAmount(c.CollectedAmount))
			options = append(options, huh.NewOption(label, c.ID.String()))
		}

		return exportOptionsMsg{options: options}
	}
}

type exportResultMsg struct {
	body    string
	archive string
	err     error
}

const exportTimeout = 2 * time.Minute

func (m ExportModel) runExportCmd(choice exportChoice) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), exportTimeout)
		defer cancel()

		id, err := uuid.Parse(choice.campaignID)
		if err != nil {
			return exportResultMsg{err: err}
		}

		dir := filepath.Join(choice.path, "ledger_"+id.String()[:8])

		res, err := m.exportService.Export(ctx, id, dir)
		if err != nil {
			return exportResultMsg{err: err}
		}

		body := m.exportService.GenerateSummary(res)

		if !choice.zip {
			return exportResultMsg{body: body}
		}

		archive := dir + ".zip"

		f, err := os.Create(archive)
		if err != nil {
			return exportResultMsg{body: body, err: fmt.Errorf("creating archive: %w", err)}
		}
		defer f.Close()

		if err := export.Zip(f, dir); err != nil {
			return exportResultMsg{body: body, err: fmt.Errorf("writing archive: %w", err)}
		}

		return exportResultMsg{body: body, archive: archive}
	}
}
