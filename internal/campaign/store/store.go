package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Scanner is satisfied by *sql.Row and *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// Columns lists the campaign columns in the order ScanCampaign expects,
// qualified with the alias c.
const Columns = `
	c.id, c.title, c.description, c.image_url, c.location, c.contact_phone,
	c.target_amount, c.deadline, c.status, c.collected_amount, c.donor_count,
	c.creator_id, c.version, c.created_at, c.updated_at, c.closed_at
`

// ScanCampaign reads a campaign row selected with Columns.
func ScanCampaign(s Scanner) (*campaign.Campaign, error) {
	var c campaign.Campaign

	var status string

	var closedAt sql.NullTime

	if err := s.Scan(
		&c.ID, &c.Title, &c.Description, &c.ImageURL, &c.Location, &c.ContactPhone,
		&c.TargetAmount, &c.Deadline, &status, &c.CollectedAmount, &c.DonorCount,
		&c.CreatorID, &c.Version, &c.CreatedAt, &c.UpdatedAt, &closedAt,
	); err != nil {
		return nil, err
	}

	c.Status = campaign.Status(status)

	if closedAt.Valid {
		c.ClosedAt = &closedAt.Time
	}

	return &c, nil
}

func (s *Store) CreateCampaign(ctx context.Context, c *campaign.Campaign) error {
	query := `
		INSERT INTO campaigns (
			id, title, description, image_url, location, contact_phone,
			target_amount, deadline, status, creator_id, version, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		RETURNING created_at, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		c.ID,
		c.Title,
		c.Description,
		c.ImageURL,
		c.Location,
		c.ContactPhone,
		c.TargetAmount,
		c.Deadline,
		c.Status,
		c.CreatorID,
		c.Version,
	).Scan(&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating campaign: %w", err)
	}

	return nil
}

func (s *Store) GetCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	query := `SELECT ` + Columns + ` FROM campaigns c WHERE c.id = $1`

	c, err := ScanCampaign(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, campaign.ErrNotFound
		}

		return nil, fmt.Errorf("getting campaign: %w", err)
	}

	return c, nil
}

// ListCampaigns runs the page and the total count concurrently.
func (s *Store) ListCampaigns(ctx context.Context, filter campaign.ListFilter) ([]*campaign.Campaign, int, error) {
	where, args := listConditions(filter)

	var (
		items []*campaign.Campaign
		total int
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		query := `SELECT COUNT(*) FROM campaigns c` + where
		if err := s.db.QueryRowContext(gctx, query, args...).Scan(&total); err != nil {
			return fmt.Errorf("counting campaigns: %w", err)
		}

		return nil
	})

	g.Go(func() error {
		pageArgs := append(args[:len(args):len(args)], filter.PageSize, filter.Offset())
		query := `SELECT ` + Columns + ` FROM campaigns c` + where +
			fmt.Sprintf(" ORDER BY c.created_at DESC, c.id DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)

		rows, err := s.db.QueryContext(gctx, query, pageArgs...)
		if err != nil {
			return fmt.Errorf("listing campaigns: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			c, err := ScanCampaign(rows)
			if err != nil {
				return fmt.Errorf("scanning campaign: %w", err)
			}

			items = append(items, c)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating campaign rows: %w", err)
		}

		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func listConditions(filter campaign.ListFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("c.status = $%d", len(args)))
	}

	if filter.Search != "" {
		args = append(args, "%"+escapeLike(filter.Search)+"%")
		conds = append(conds, fmt.Sprintf("(c.title ILIKE $%d OR c.description ILIKE $%d)", len(args), len(args)))
	}

	if len(conds) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *Store) UpdateCampaign(ctx context.Context, c *campaign.Campaign) error {
	query := `
		UPDATE campaigns
		SET title = $1, description = $2, image_url = $3, location = $4, contact_phone = $5,
			target_amount = $6, deadline = $7, status = $8, closed_at = $9,
			version = version + 1, updated_at = NOW()
		WHERE id = $10 AND version = $11
		RETURNING version, updated_at
	`

	err := s.db.QueryRowContext(ctx, query,
		c.Title,
		c.Description,
		c.ImageURL,
		c.Location,
		c.ContactPhone,
		c.TargetAmount,
		c.Deadline,
		c.Status,
		c.ClosedAt,
		c.ID,
		c.Version,
	).Scan(&c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaign.ErrStaleVersion
		}

		return fmt.Errorf("updating campaign: %w", err)
	}

	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to campaign.Status, at time.Time) error {
	query := `
		UPDATE campaigns
		SET status = $1, closed_at = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND status = $4
	`

	res, err := s.db.ExecContext(ctx, query, to, at, id, from)
	if err != nil {
		return fmt.Errorf("updating campaign status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating campaign status rows affected: %w", err)
	}

	if n == 0 {
		return campaign.ErrStaleVersion
	}

	return nil
}

func (s *Store) CloseExpired(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE campaigns
		SET status = 'CLOSED', closed_at = $1, version = version + 1, updated_at = NOW()
		WHERE status = 'ACTIVE' AND deadline <= $1
	`

	res, err := s.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, fmt.Errorf("closing expired campaigns: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("closing expired campaigns rows affected: %w", err)
	}

	return int(n), nil
}
