package view

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
)

const outcomeSkip = "SKIP"

// reviewChoice is shared with the form so answers survive model copies.
type reviewChoice struct {
	outcome string
	reason  string
}

type ReviewModel struct {
	CommonModel
	registry *campaign.Service
	ledger   *donation.Ledger
	workflow *donation.Workflow
	actorID  uuid.UUID

	queue    []*donation.Donation
	current  *donation.Donation
	campaign *campaign.Campaign
	form     *huh.Form

	choice *reviewChoice

	status     string
	loading    bool
	totalCount int
	approved   int
	rejected   int
}

// NewReviewModel walks the pending queue oldest first. Decisions are recorded
// under actorID.
func NewReviewModel(registry *campaign.Service, ledger *donation.Ledger, workflow *donation.Workflow, actorID uuid.UUID) ReviewModel {
	return ReviewModel{
		registry: registry,
		ledger:   ledger,
		workflow: workflow,
		actorID:  actorID,
		loading:  true,
		status:   "Loading pending donations...",
	}
}

func (m ReviewModel) Title() string { return "Review Donations" }
func (m ReviewModel) ShortHelp() string {
	return "Enter: confirm | Esc: back"
}

func (m ReviewModel) Init() tea.Cmd {
	return m.loadPendingCmd()
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.Type == tea.KeyEsc {
			return m, Back
		}

		if m.loading {
			return m, nil
		}

	case loadPendingMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error loading pending donations: %v", msg.err)
			return m, nil
		}

		m.queue = msg.donations
		m.totalCount = len(m.queue)

		return m.next()

	case loadCampaignMsg:
		m.loading = false
		if msg.err != nil {
			m.status = fmt.Sprintf("Error loading campaign: %v", msg.err)
			return m, nil
		}

		m.campaign = msg.campaign

		return m, m.form.Init()

	case decideResultMsg:
		m.loading = false

		switch {
		case errors.Is(msg.err, donation.ErrAlreadyDecided):
			m.status = "Already decided elsewhere, skipped."
		case msg.err != nil:
			m.status = fmt.Sprintf("Error saving decision: %v", msg.err)
			return m, nil
		case msg.decision.Donation.Status == donation.StatusApproved:
			m.approved++
		default:
			m.rejected++
		}

		return m.next()
	}

	if m.loading || m.form == nil || m.current == nil {
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State != huh.StateCompleted {
		return m, cmd
	}

	if m.choice.outcome == outcomeSkip {
		return m.next()
	}

	m.loading = true

	return m, m.decideCmd(m.current.ID, donation.Outcome(m.choice.outcome), m.choice.reason)
}

// next pops the queue and prepares the decision form for the popped donation.
func (m ReviewModel) next() (tea.Model, tea.Cmd) {
	if len(m.queue) == 0 {
		m.current = nil
		m.campaign = nil
		m.form = nil
		m.status = fmt.Sprintf("All done! %d approved, %d rejected.", m.approved, m.rejected)

		return m, nil
	}

	m.current = m.queue[0]
	m.queue = m.queue[1:]
	m.campaign = nil
	m.choice = &reviewChoice{outcome: string(donation.OutcomeApprove)}
	m.form = buildReviewForm(m.choice)
	m.loading = true

	reviewed := m.totalCount - len(m.queue)
	m.status = fmt.Sprintf("Reviewing %d/%d", reviewed, m.totalCount)

	return m, m.loadCampaignCmd(m.current.CampaignID)
}

func buildReviewForm(choice *reviewChoice) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("outcome").
				Title("Decision").
				Options(
					huh.NewOption("Approve", string(donation.OutcomeApprove)),
					huh.NewOption("Reject", string(donation.OutcomeReject)),
					huh.NewOption("Skip for now", outcomeSkip),
				).
				Value(&choice.outcome),
			huh.NewInput().
				Key("reason").
				Title("Reason").
				Description("Required when rejecting").
				Value(&choice.reason).
				Validate(func(s string) error {
					if choice.outcome == string(donation.OutcomeReject) && strings.TrimSpace(s) == "" {
						return errors.New("a rejection needs a reason")
					}

					return nil
				}),
		),
	).WithWidth(50).WithShowHelp(false)
}

func (m ReviewModel) View() string {
	if m.current == nil || m.form == nil {
		return lipgloss.NewStyle().Padding(2).Render(m.status + "\n\n(Esc to back)")
	}

	d := m.current

	title := "…"
	progress := ""

	if m.campaign != nil {
		title = m.campaign.Title
		p := campaign.ProgressOf(m.campaign, m.registry.Now())
		progress = fmt.Sprintf("%s %.2f%% of %s (%s)",
			Bar(p.PercentFunded, 20), p.PercentFunded, FormatAmount(m.campaign.TargetAmount), m.campaign.Status)
	}

	donor := d.DisplayName()
	if d.IsAnonymous && d.DonorName != "" {
		donor = fmt.Sprintf("%s (shown as %s)", d.DonorName, donation.AnonymousName)
	}

	info := fmt.Sprintf(
		"Campaign:  %s\n           %s\nDonor:     %s %s\nAmount:    %s\nReference: %s\nSubmitted: %s\nProof:     %s\nMessage:   %s\n",
		title,
		progress,
		donor,
		d.DonorEmail,
		lipgloss.NewStyle().Bold(true).Render(FormatAmount(d.Amount)),
		d.PaymentReference,
		d.CreatedAt.Format("2006-01-02 15:04"),
		d.ProofURL,
		d.Message,
	)

	content := fmt.Sprintf("%s\n\n%s\n%s", m.status, info, m.form.View())
	if m.loading && m.form.State == huh.StateCompleted {
		content += "\n\nSaving..."
	}

	return lipgloss.NewStyle().Padding(2).Render(content)
}

// Messages

type loadPendingMsg struct {
	donations []*donation.Donation
	err       error
}

func (m ReviewModel) loadPendingCmd() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		ds, err := m.ledger.ListPending(ctx)

		return loadPendingMsg{donations: ds, err: err}
	}
}

type loadCampaignMsg struct {
	campaign *campaign.Campaign
	err      error
}

func (m ReviewModel) loadCampaignCmd(id uuid.UUID) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		c, err := m.registry.Get(ctx, id)

		return loadCampaignMsg{campaign: c, err: err}
	}
}

type decideResultMsg struct {
	decision *donation.Decision
	err      error
}

func (m ReviewModel) decideCmd(id uuid.UUID, outcome donation.Outcome, reason string) tea.Cmd {
	actor := m.actorID

	return func() tea.Msg {
		ctx, cancel := DbCtx()
		defer cancel()

		dec, err := m.workflow.Decide(ctx, donation.DecideParams{
			DonationID: id,
			Outcome:    outcome,
			ActorID:    actor,
			Reason:     reason,
		})

		return decideResultMsg{decision: dec, err: err}
	}
}
