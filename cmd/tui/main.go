package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/MrJamesThe3rd/bantudesa/cmd/tui/internal/view"
	"github.com/MrJamesThe3rd/bantudesa/internal/app"
	"github.com/MrJamesThe3rd/bantudesa/internal/config"
)

type model struct {
	app     *app.App
	actorID string
	cfg     *config.Config

	currentView View

	campaignsView view.CampaignsModel
	reviewView    view.ReviewModel
	exportView    view.ExportModel
}

type View int

const (
	ViewMenu      View = 0
	ViewCampaigns View = 1
	ViewReview    View = 2
	ViewExport    View = 3
)

func initialModel(a *app.App, cfg *config.Config) model {
	return model{
		app:         a,
		cfg:         cfg,
		actorID:     cfg.ActorID().String(),
		currentView: ViewMenu,
	}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		if m.currentView == ViewMenu {
			switch msg.String() {
			case "q":
				return m, tea.Quit
			case "1":
				m.currentView = ViewCampaigns
				m.campaignsView = view.NewCampaignsModel(m.app.Registry)

				return m, m.campaignsView.Init()
			case "2":
				m.currentView = ViewReview
				m.reviewView = view.NewReviewModel(m.app.Registry, m.app.Ledger, m.app.Workflow, m.cfg.ActorID())

				return m, m.reviewView.Init()
			case "3":
				m.currentView = ViewExport
				m.exportView = view.NewExportModel(m.app.Registry, m.app.Export)

				return m, m.exportView.Init()
			}
		}
	case view.BackMsg:
		m.currentView = ViewMenu
		return m, nil
	}

	switch m.currentView {
	case ViewCampaigns:
		var newModel tea.Model
		newModel, cmd = m.campaignsView.Update(msg)
		m.campaignsView = newModel.(view.CampaignsModel)
	case ViewReview:
		var newModel tea.Model
		newModel, cmd = m.reviewView.Update(msg)
		m.reviewView = newModel.(view.ReviewModel)
	case ViewExport:
		var newModel tea.Model
		newModel, cmd = m.exportView.Update(msg)
		m.exportView = newModel.(view.ExportModel)
	}

	return m, cmd
}

func (m model) View() string {
	switch m.currentView {
	case ViewMenu:
		return lipgloss.NewStyle().Padding(2).Render(
			m.cfg.App.Name + "\n\n" +
				"1. Campaigns\n" +
				"2. Review Pending Donations\n" +
				"3. Export Ledger\n\n" +
				"q. Quit\n\n" +
				lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Render("Acting as "+m.actorID),
		)
	case ViewCampaigns:
		return renderScreen(m.campaignsView)
	case ViewReview:
		return renderScreen(m.reviewView)
	case ViewExport:
		return renderScreen(m.exportView)
	}

	return "Unknown View"
}

func renderScreen(v view.View) string {
	title := lipgloss.NewStyle().Bold(true).Padding(0, 1).Render(v.Title())
	help := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 1).Render(v.ShortHelp())

	return lipgloss.JoinVertical(lipgloss.Left, title, v.View(), help)
}

// logOutput keeps log lines off the terminal the program draws on.
func logOutput(cfg *config.Config) (io.Writer, func(), error) {
	if cfg.TUI.LogFile == "" {
		return io.Discard, func() {}, nil
	}

	f, err := os.OpenFile(cfg.TUI.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	return f, func() { f.Close() }, nil
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	out, closeLog, err := logOutput(cfg)
	if err != nil {
		slog.Error("failed to open log", "error", err)
		os.Exit(1)
	}
	defer closeLog()

	logger := app.NewLogger(cfg, out)
	slog.SetDefault(logger)

	a, err := app.New(context.Background(), cfg, logger, prometheus.NewRegistry())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise services: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(initialModel(a, cfg))

	_, err = p.Run()

	a.Close()

	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to run TUI: %v\n", err)
		os.Exit(1)
	}
}
