package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	campaignstore "github.com/MrJamesThe3rd/bantudesa/internal/campaign/store"
	"github.com/MrJamesThe3rd/bantudesa/internal/database"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
)

const paymentReferenceKey = "donations_payment_reference_key"

type Store struct {
	db        *sql.DB
	txTimeout time.Duration
}

// New returns a store whose decision transactions are bounded by txTimeout
// when the caller's context carries no deadline.
func New(db *sql.DB, txTimeout time.Duration) *Store {
	return &Store{db: db, txTimeout: txTimeout}
}

const selectDonationColumns = `
	d.id, d.campaign_id, d.donor_id, d.donor_name, d.donor_email, d.is_anonymous,
	d.amount, d.payment_reference, d.proof_url, d.status, d.message, d.reason,
	d.created_at, d.decided_at, d.decided_by
`

func scanDonation(s campaignstore.Scanner) (*donation.Donation, error) {
	var d donation.Donation

	var status string

	if err := s.Scan(
		&d.ID, &d.CampaignID, &d.DonorID, &d.DonorName, &d.DonorEmail, &d.IsAnonymous,
		&d.Amount, &d.PaymentReference, &d.ProofURL, &status, &d.Message, &d.Reason,
		&d.CreatedAt, &d.DecidedAt, &d.DecidedBy,
	); err != nil {
		return nil, err
	}

	d.Status = donation.Status(status)

	return &d, nil
}

func (s *Store) CreateDonation(ctx context.Context, d *donation.Donation) error {
	query := `
		INSERT INTO donations (
			id, campaign_id, donor_id, donor_name, donor_email, is_anonymous,
			amount, payment_reference, proof_url, status, message, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`

	err := s.db.QueryRowContext(ctx, query,
		d.ID,
		d.CampaignID,
		d.DonorID,
		d.DonorName,
		d.DonorEmail,
		d.IsAnonymous,
		d.Amount,
		d.PaymentReference,
		d.ProofURL,
		d.Status,
		d.Message,
		d.CreatedAt,
	).Scan(&d.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err, paymentReferenceKey) {
			return donation.ErrDuplicateReference
		}

		return fmt.Errorf("creating donation: %w", err)
	}

	return nil
}

func (s *Store) GetDonation(ctx context.Context, id uuid.UUID) (*donation.Donation, error) {
	return getDonation(ctx, s.db, id, false)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getDonation(ctx context.Context, q querier, id uuid.UUID, forUpdate bool) (*donation.Donation, error) {
	query := `SELECT ` + selectDonationColumns + ` FROM donations d WHERE d.id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	d, err := scanDonation(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, donation.ErrNotFound
		}

		return nil, fmt.Errorf("getting donation: %w", database.Classify(err))
	}

	return d, nil
}

func (s *Store) ListDonations(ctx context.Context, filter donation.ListFilter) ([]*donation.Donation, error) {
	var (
		conds []string
		args  []any
	)

	if filter.CampaignID != nil {
		args = append(args, *filter.CampaignID)
		conds = append(conds, fmt.Sprintf("d.campaign_id = $%d", len(args)))
	}

	if filter.DonorID != nil {
		args = append(args, *filter.DonorID)
		conds = append(conds, fmt.Sprintf("d.donor_id = $%d", len(args)))
	}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		conds = append(conds, fmt.Sprintf("d.status = $%d", len(args)))
	}

	query := `SELECT ` + selectDonationColumns + ` FROM donations d`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	if filter.OldestFirst {
		query += " ORDER BY d.created_at ASC, d.id ASC"
	} else {
		query += " ORDER BY d.created_at DESC, d.id DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing donations: %w", err)
	}
	defer rows.Close()

	var out []*donation.Donation

	for rows.Next() {
		d, err := scanDonation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning donation: %w", err)
		}

		out = append(out, d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating donation rows: %w", err)
	}

	return out, nil
}

func decisionLockKey(campaignID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte("decision"))
	h.Write([]byte{0})
	h.Write(campaignID[:])

	return int64(h.Sum64())
}

type decisionTx struct {
	tx     *sql.Tx
	cancel context.CancelFunc
}

// BeginDecision opens a transaction holding the campaign's advisory lock until
// it commits or rolls back.
func (s *Store) BeginDecision(ctx context.Context, campaignID uuid.UUID) (donation.DecisionTx, error) {
	ctx, cancel := database.WithTimeout(ctx, s.txTimeout)

	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("beginning decision tx: %w", err)
	}

	if _, err := dbTx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", decisionLockKey(campaignID)); err != nil {
		dbTx.Rollback()
		cancel()

		return nil, fmt.Errorf("acquiring decision lock: %w", database.Classify(err))
	}

	return &decisionTx{tx: dbTx, cancel: cancel}, nil
}

func (dtx *decisionTx) Commit() error {
	defer dtx.cancel()

	if err := dtx.tx.Commit(); err != nil {
		return database.Classify(err)
	}

	return nil
}

func (dtx *decisionTx) Rollback() error {
	defer dtx.cancel()

	if err := dtx.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return err
	}

	return nil
}

func (dtx *decisionTx) GetDonation(ctx context.Context, id uuid.UUID) (*donation.Donation, error) {
	return getDonation(ctx, dtx.tx, id, true)
}

func (dtx *decisionTx) GetCampaign(ctx context.Context, id uuid.UUID) (*campaign.Campaign, error) {
	query := `SELECT ` + campaignstore.Columns + ` FROM campaigns c WHERE c.id = $1`

	c, err := campaignstore.ScanCampaign(dtx.tx.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, campaign.ErrNotFound
		}

		return nil, fmt.Errorf("getting campaign: %w", database.Classify(err))
	}

	return c, nil
}

func (dtx *decisionTx) SaveDecision(ctx context.Context, d *donation.Donation) error {
	query := `
		UPDATE donations
		SET status = $1, reason = $2, decided_at = $3, decided_by = $4
		WHERE id = $5 AND status = 'PENDING'
	`

	res, err := dtx.tx.ExecContext(ctx, query, d.Status, d.Reason, d.DecidedAt, d.DecidedBy, d.ID)
	if err != nil {
		return fmt.Errorf("saving decision: %w", database.Classify(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("saving decision rows affected: %w", err)
	}

	if n == 0 {
		return donation.ErrAlreadyDecided
	}

	return nil
}

func (dtx *decisionTx) SaveCampaign(ctx context.Context, c *campaign.Campaign) error {
	query := `
		UPDATE campaigns
		SET collected_amount = $1, donor_count = $2, status = $3, closed_at = $4,
			version = version + 1, updated_at = NOW()
		WHERE id = $5 AND version = $6
		RETURNING version, updated_at
	`

	err := dtx.tx.QueryRowContext(ctx, query,
		c.CollectedAmount,
		c.DonorCount,
		c.Status,
		c.ClosedAt,
		c.ID,
		c.Version,
	).Scan(&c.Version, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return campaign.ErrStaleVersion
		}

		return fmt.Errorf("saving campaign aggregate: %w", database.Classify(err))
	}

	return nil
}
