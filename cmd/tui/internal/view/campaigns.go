package view

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
)

type campaignsState int

const (
	campaignsStateBrowse campaignsState = iota
	campaignsStateConfirmCancel
)

type CampaignsModel struct {
	CommonModel
	registry *campaign.Service

	state     campaignsState
	table     table.Model
	bar       progress.Model
	campaigns []*campaign.Campaign
	total     int
	form      *huh.Form
	confirm   *bool

	// Filter cycling
	statusFilterIdx int

	filter  campaign.ListFilter
	loading bool
	err     error
	status  string
}

var statusFilters = []struct {
	label  string
	status *campaign.Status
}{
	{"All", nil},
	{"Active", new(campaign.StatusActive)},
	{"Closed", new(campaign.StatusClosed)},
	{"Cancelled", new(campaign.StatusCancelled)},
}

func NewCampaignsModel(registry *campaign.Service) CampaignsModel {
	columns := []table.Column{
		{Title: "Title", Width: 28},
		{Title: "Status", Width: 10},
		{Title: "Collected", Width: 15},
		{Title: "Target", Width: 15},
		{Title: "Progress", Width: 22},
		{Title: "Days", Width: 5},
		{Title: "Donors", Width: 7},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithFocused(true),
		table.WithHeight(15),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)

	return CampaignsModel{
		registry: registry,
		table:    t,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		filter:   campaign.ListFilter{PageSize: campaign.MaxPageSize},
		loading:  true,
	}
}

func (m CampaignsModel) Title() string { return "Campaigns" }
func (m CampaignsModel) ShortHelp() string {
	if m.state == campaignsStateConfirmCancel {
		return "Navigate form | Esc: back"
	}

	return "Esc: back | s: status filter | c: cancel campaign | r: refresh"
}

func (m CampaignsModel) Init() tea.Cmd {
	return m.loadCampaignsCmd()
}

func (m CampaignsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case loadCampaignsMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}

		m.err = nil
		m.campaigns = msg.page.Items
		m.total = msg.page.Total
		m.refreshTable()

		return m, nil

	case cancelCampaignMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("Error cancelling: %v", msg.err)
		} else {
			m.status = fmt.Sprintf("Cancelled %q", msg.title)
		}

		return m, m.loadCampaignsCmd()

	case tea.WindowSizeMsg:
		m.Resize(msg)
		m.table.SetHeight(max(5, m.Height-14))

		return m, nil
	}

	switch m.state {
	case campaignsStateBrowse:
		return m.updateBrowse(msg)
	case campaignsStateConfirmCancel:
		return m.updateConfirm(msg)
	}

	return m, nil
}

func (m CampaignsModel) updateBrowse(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.String() {
		case "esc":
			return m, Back
		case "r":
			m.loading = true
			return m, m.loadCampaignsCmd()
		case "s":
			m.statusFilterIdx = (m.statusFilterIdx + 1) % len(statusFilters)
			m.filter.Status = statusFilters[m.statusFilterIdx].status

			return m, m.loadCampaignsCmd()
		case "c":
			return m.enterConfirm()
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m CampaignsModel) selected() *campaign.Campaign {
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.campaigns) {
		return nil
	}

	return m.campaigns[idx]
}

func (m CampaignsModel) enterConfirm() (tea.Model, tea.Cmd) {
	c := m.selected()
	if c == nil {
		return m, nil
	}

	if c.Status != campaign.StatusActive {
		m.status = fmt.Sprintf("%q is already %s", c.Title, c.Status)
		return m, nil
	}

	m.confirm = new(bool)
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Key("confirm").
				Title(fmt.Sprintf("Cancel %q?", c.Title)).
				Description("Pending donations can still be decided afterwards.").
				Affirmative("Cancel campaign").
				Negative("Keep").
				Value(m.confirm),
		),
	).WithWidth(45).WithShowHelp(false)

	m.state = campaignsStateConfirmCancel
	m.table.Blur()

	return m, m.form.Init()
}

func (m CampaignsModel) updateConfirm(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		m.state = campaignsStateBrowse
		m.form = nil
		m.table.Focus()

		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	target := m.selected()

	m.state = campaignsStateBrowse
	m.form = nil
	m.table.Focus()

	if !*m.confirm {
		return m, nil
	}

	m.status = "Cancelling..."

	return m, m.cancelCmd(target)
}

func (m CampaignsModel) View() string {
	if m.loading {
		return lipgloss.NewStyle().Padding(2).Render("Loading campaigns...")
	}

	if m.err != nil {
		return lipgloss.NewStyle().Padding(2).Render(fmt.Sprintf("Error: %v", m.err))
	}

	header := fmt.Sprintf(
		"Filter: [s] Status: %s | %d campaigns",
		activeStyle(statusFilters[m.statusFilterIdx].label),
		m.total,
	)

	tableView := lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		Render(m.table.View())

	content := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().PaddingBottom(1).Render(header),
		tableView,
	)

	if c := m.selected(); c != nil {
		p := campaign.ProgressOf(c, m.registry.Now())
		detail := fmt.Sprintf("%s\n%s  %.2f%%\n%s of %s · %d donors · %d days left",
			lipgloss.NewStyle().Bold(true).Render(c.Title),
			m.bar.ViewAs(p.PercentFunded/100),
			p.PercentFunded,
			FormatAmount(c.CollectedAmount),
			FormatAmount(c.TargetAmount),
			c.DonorCount,
			p.DaysLeft,
		)
		content = lipgloss.JoinVertical(lipgloss.Left, content, lipgloss.NewStyle().PaddingTop(1).Render(detail))
	}

	if m.state == campaignsStateConfirmCancel && m.form != nil {
		panel := lipgloss.NewStyle().
			Padding(1, 2).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Width(48).
			Render(m.form.View())

		content = lipgloss.JoinHorizontal(lipgloss.Top, content, panel)
	}

	if m.status != "" {
		content = lipgloss.NewStyle().Faint(true).Render(m.status) + "\n" + content
	}

	return lipgloss.NewStyle().Padding(1).Render(content)
}

func activeStyle(s string) string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Render(s)
}

func (m *CampaignsModel) refreshTable() {
	now := m.registry.Now()

	rows := make([]table.Row, 0, len(m.campaigns))
	for _, c := range m.campaigns {
		p := campaign.ProgressOf(c, now)
		rows = append(rows, table.Row{
			c.Title,
			string(c.Status),
			FormatAmount(c.CollectedAmount),
			FormatAmount(c.TargetAmount),
			fmt.Sprintf("%s %3.0f%%", Bar(p.PercentFunded, 15), p.PercentFunded),
			fmt.Sprint(p.DaysLeft),
			fmt.Sprint(c.DonorCount),
		})
	}

	m.table.SetRows(rows)
}

// Messages

type loadCampaignsMsg struct {
	page *campaign.Page
	err  error
}

func (m CampaignsModel) loadCampaignsCmd() tea.Cmd {
	filter := m.filter

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		page, err := m.registry.List(ctx, filter)

		return loadCampaignsMsg{page: page, err: err}
	}
}

type cancelCampaignMsg struct {
	title string
	err   error
}

func (m CampaignsModel) cancelCmd(c *campaign.Campaign) tea.Cmd {
	if c == nil {
		return nil
	}

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		_, err := m.registry.Cancel(ctx, c.ID)

		return cancelCampaignMsg{title: c.Title, err: err}
	}
}
