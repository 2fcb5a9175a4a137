package campaign

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/sentinel"
)

// Status represents the lifecycle state of a campaign.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusClosed    Status = "CLOSED"
	StatusCancelled Status = "CANCELLED"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusClosed, StatusCancelled:
		return true
	}

	return false
}

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusCancelled
}

// ParseStatus converts external input into a Status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown campaign status %q", sentinel.ErrValidation, s)
	}

	return st, nil
}

// Campaign is a funding drive. CollectedAmount and DonorCount are maintained
// exclusively by the verification workflow and always equal the sum and count
// of approved donations.
type Campaign struct {
	ID              uuid.UUID
	Title           string
	Description     string
	ImageURL        string
	Location        string
	ContactPhone    string
	TargetAmount    int64
	Deadline        time.Time
	Status          Status
	CollectedAmount int64
	DonorCount      int64
	CreatorID       uuid.UUID
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ClosedAt        *time.Time
}

// CreateParams carries the creator-supplied fields of a new campaign.
type CreateParams struct {
	Title        string
	Description  string
	ImageURL     string
	Location     string
	ContactPhone string
	TargetAmount int64
	Deadline     time.Time
	CreatorID    uuid.UUID
}

// UpdateParams holds the editable fields; nil means unchanged.
type UpdateParams struct {
	Title        *string
	Description  *string
	ImageURL     *string
	Location     *string
	ContactPhone *string
	TargetAmount *int64
	Deadline     *time.Time
}

// ListFilter narrows a campaign listing. Page is 1-based.
type ListFilter struct {
	Status   *Status
	Search   string
	Page     int
	PageSize int
}

// Page is one page of a listing together with the total number of matches.
type Page struct {
	Items    []*Campaign
	Total    int
	Page     int
	PageSize int
}

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Normalize applies the pagination defaults and caps.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}

	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}

	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}

	f.Search = strings.TrimSpace(f.Search)

	return f
}

// Offset is the number of rows skipped before the requested page.
func (f ListFilter) Offset() int {
	return (f.Page - 1) * f.PageSize
}
