package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/blob"
	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/storage/memory"
)

var pngBytes = []byte{
	0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a,
	0x00, 0x00, 0x00, 0x0d, 'I', 'H', 'D', 'R',
	0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x02, 0x00, 0x00, 0x00, 0x90, 0x77, 0x53, 0xde,
}

func TestExportService_Export(t *testing.T) {
	// Hosts that are not on the allow-list must never be contacted.
	var foreignHits atomic.Int32

	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		foreignHits.Add(1)
		w.Write([]byte("internal metadata"))
	}))
	defer foreign.Close()

	foreignURL := foreign.URL

	// Remote proofs
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/transfer.pdf" {
			w.Header().Set("Content-Type", "application/pdf")
			w.Header().Set("Content-Disposition", "attachment; filename=\"bukti transfer.pdf\"")
			w.Write([]byte("fake pdf content"))

			return
		}

		if r.URL.Path == "/huge.pdf" {
			w.Header().Set("Content-Type", "application/pdf")
			w.Write(bytes.Repeat([]byte("x"), 4096))

			return
		}

		if r.URL.Path == "/elsewhere.pdf" {
			http.Redirect(w, r, foreignURL+"/secret", http.StatusFound)

			return
		}

		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	blobs, err := blob.NewFileStore(t.TempDir(), "http://localhost/api/v1/proofs", 1024)
	if err != nil {
		t.Fatalf("failed to create blob store: %v", err)
	}

	local, err := blobs.Put(ctx, bytes.NewReader(pngBytes))
	if err != nil {
		t.Fatalf("failed to store proof: %v", err)
	}

	store := memory.New()
	registry := campaign.NewService(store, campaign.WithClock(clock))
	ledger := donation.NewLedger(store, registry, donation.WithClock(clock))

	c, err := registry.Create(ctx, campaign.CreateParams{
		Title:        "Sumur bor",
		TargetAmount: 2_000_000,
		Deadline:     now.Add(7 * 24 * time.Hour),
		CreatorID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("failed to create campaign: %v", err)
	}

	submit := func(ref, proof string) {
		t.Helper()

		_, err := ledger.Submit(ctx, donation.SubmitParams{
			CampaignID:       c.ID,
			Amount:           50_000,
			ProofURL:         proof,
			Donor:            donation.Donor{Name: "Warga " + ref},
			PaymentReference: ref,
		})
		if err != nil {
			t.Fatalf("failed to submit %s: %v", ref, err)
		}
	}

	submit("REF-LOCAL", local.URL)
	submit("REF-REMOTE", ts.URL+"/transfer.pdf")
	submit("REF-MISSING", ts.URL+"/gone.pdf")
	submit("REF-FOREIGN", foreign.URL+"/latest/meta-data")
	submit("REF-REDIRECT", ts.URL+"/elsewhere.pdf")
	submit("REF-HUGE", ts.URL+"/huge.pdf")

	tmpDir := t.TempDir()
	service := NewService(registry, ledger, blobs,
		WithProofHosts(strings.TrimPrefix(ts.URL, "http://")),
		WithMaxProofBytes(1024),
	)

	res, err := service.Export(ctx, c.ID, tmpDir)
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	if len(res.Items) != 6 {
		t.Fatalf("expected 6 items, got %d", len(res.Items))
	}

	files := map[string]string{}
	for _, item := range res.Items {
		files[item.Donation.PaymentReference] = item.FilePath
	}

	if got := filepath.Base(files["REF-LOCAL"]); got != "REF-LOCAL_"+local.Name {
		t.Errorf("expected local proof copied as REF-LOCAL_%s, got %s", local.Name, got)
	}

	content, _ := os.ReadFile(files["REF-LOCAL"])
	if !bytes.Equal(content, pngBytes) {
		t.Errorf("local proof content mismatch")
	}

	if got := filepath.Base(files["REF-REMOTE"]); got != "REF-REMOTE_bukti_transfer.pdf" {
		t.Errorf("expected REF-REMOTE_bukti_transfer.pdf, got %s", got)
	}

	for _, ref := range []string{"REF-MISSING", "REF-FOREIGN", "REF-REDIRECT", "REF-HUGE"} {
		if files[ref] != "" {
			t.Errorf("expected no file for %s, got %s", ref, files[ref])
		}
	}

	if n := foreignHits.Load(); n != 0 {
		t.Errorf("expected no requests to a host outside the allow-list, got %d", n)
	}

	if _, err := os.Stat(filepath.Join(tmpDir, "REF-HUGE.pdf")); !os.IsNotExist(err) {
		t.Errorf("expected oversized proof to be removed, stat err: %v", err)
	}

	f, err := os.Open(filepath.Join(tmpDir, LedgerFile))
	if err != nil {
		t.Fatalf("ledger not written: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("failed to read ledger: %v", err)
	}

	if len(rows) != 7 {
		t.Fatalf("expected header and 6 rows, got %d", len(rows))
	}

	if strings.Join(rows[0], ",") != strings.Join(ledgerHeader, ",") {
		t.Errorf("unexpected header %v", rows[0])
	}

	for _, row := range rows[1:] {
		if row[5] != "50000" || row[6] != "PENDING" {
			t.Errorf("unexpected row %v", row)
		}
	}
}

func TestExportService_UnknownCampaign(t *testing.T) {
	store := memory.New()
	registry := campaign.NewService(store)
	service := NewService(registry, donation.NewLedger(store, registry), nil)

	_, err := service.Export(context.Background(), uuid.New(), t.TempDir())
	if err == nil {
		t.Fatal("expected error for unknown campaign")
	}
}

func TestService_GenerateSummary(t *testing.T) {
	s := &Service{}

	date := time.Date(2023, 10, 27, 0, 0, 0, 0, time.UTC)
	res := &Result{
		Campaign: &campaign.Campaign{
			Title:           "Posyandu",
			TargetAmount:    1_000_000,
			CollectedAmount: 125_000,
			DonorCount:      1,
		},
		Items: []Item{
			{
				Donation: &donation.Donation{
					CreatedAt: date,
					Amount:    125_000,
					DonorName: "Siti",
					Status:    donation.StatusApproved,
				},
				FilePath: "/tmp/REF-1_proof.png",
			},
			{
				Donation: &donation.Donation{
					CreatedAt: date,
					Amount:    10_000,
					DonorName: "Budi",
					Status:    donation.StatusPending,
				},
			},
		},
	}

	body := s.GenerateSummary(res)

	expectedSubstrings := []string{
		"Terkumpul Rp125.000 dari Rp1.000.000 (1 donatur)",
		"2023-10-27 | Siti | Rp125.000 | APPROVED | REF-1_proof.png",
		"2023-10-27 | Budi | Rp10.000 | PENDING | Tanpa Bukti",
	}

	for _, sub := range expectedSubstrings {
		if !strings.Contains(body, sub) {
			t.Errorf("expected body to contain %q", sub)
		}
	}
}
