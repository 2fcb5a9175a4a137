package donation

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

// Status represents the verification state of a donation. PENDING is the only
// non-terminal state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}

	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown donation status %q", sentinel.ErrValidation, s)
	}

	return st, nil
}

// Outcome is an administrator's verdict on a pending donation.
type Outcome string

const (
	OutcomeApprove Outcome = "APPROVE"
	OutcomeReject  Outcome = "REJECT"
)

func ParseOutcome(s string) (Outcome, error) {
	switch o := Outcome(strings.ToUpper(strings.TrimSpace(s))); o {
	case OutcomeApprove, OutcomeReject:
		return o, nil
	}

	return "", fmt.Errorf("%w %q", ErrInvalidOutcome, s)
}

// Status is the donation status the outcome leads to.
func (o Outcome) Status() Status {
	if o == OutcomeApprove {
		return StatusApproved
	}

	return StatusRejected
}

const AnonymousName = "Anonymous"

type Donation struct {
	ID         uuid.UUID
	CampaignID uuid.UUID
	// DonorID is an opaque identity reference, nil for guests.
	DonorID          *uuid.UUID
	DonorName        string
	DonorEmail       string
	IsAnonymous      bool
	Amount           int64
	PaymentReference string
	ProofURL         string
	Status           Status
	Message          string
	Reason           string
	CreatedAt        time.Time
	DecidedAt        *time.Time
	DecidedBy        *uuid.UUID
}

// DisplayName is the name shown publicly for the donor.
func (d *Donation) DisplayName() string {
	if d.IsAnonymous || strings.TrimSpace(d.DonorName) == "" {
		return AnonymousName
	}

	return d.DonorName
}

// Public returns a copy safe to show on the campaign page.
func (d *Donation) Public() *Donation {
	p := *d
	p.DonorName = d.DisplayName()

	if d.IsAnonymous {
		p.DonorID = nil
	}

	p.DonorEmail = ""
	p.ProofURL = ""

	return &p
}

// Decide records the verdict. A donation can be decided exactly once.
func (d *Donation) Decide(outcome Outcome, actor uuid.UUID, reason string, at time.Time) error {
	if d.Status != StatusPending {
		return fmt.Errorf("%w (status %s)", ErrAlreadyDecided, d.Status)
	}

	d.Status = outcome.Status()
	d.Reason = strings.TrimSpace(reason)
	d.DecidedAt = &at
	d.DecidedBy = &actor

	return nil
}

// Donor identifies whoever submits a donation. ID is nil for guests.
type Donor struct {
	ID        *uuid.UUID
	Name      string
	Email     string
	Anonymous bool
}

type SubmitParams struct {
	CampaignID uuid.UUID
	Amount     int64
	ProofURL   string
	Donor      Donor
	Message    string
	// PaymentReference is generated when empty.
	PaymentReference string
}

type DecideParams struct {
	DonationID uuid.UUID
	Outcome    Outcome
	ActorID    uuid.UUID
	Reason     string
}

type ListFilter struct {
	CampaignID  *uuid.UUID
	DonorID     *uuid.UUID
	Status      *Status
	OldestFirst bool
}

// NewPaymentReference builds a human-readable transfer reference such as
// DON-1718000000000-1A2B3C4D.
func NewPaymentReference(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("DON-%d-%s", at.UnixMilli(), suffix)
}
