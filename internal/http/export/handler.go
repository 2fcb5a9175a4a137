package export

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/auth"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/export"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/respond"
)

type Handler struct {
	svc *export.Service
}

func NewHandler(svc *export.Service) *Handler {
	return &Handler{svc: svc}
}

// CampaignRoutes registers the export routes nested under /campaigns.
func (h *Handler) CampaignRoutes(r chi.Router) {
	r.With(auth.Require(auth.RoleAdmin)).Get("/{id}/export", h.metadata)
	r.With(auth.Require(auth.RoleAdmin)).Post("/{id}/export", h.download)
}

type donationResponse struct {
	ID               uuid.UUID       `json:"id"`
	PaymentReference string          `json:"paymentReference"`
	DonorName        string          `json:"donorName"`
	Amount           int64           `json:"amount"`
	Status           donation.Status `json:"status"`
	CreatedAt        time.Time       `json:"createdAt"`
	ProofFile        string          `json:"proofFile,omitempty"`
}

type exportMetadataResponse struct {
	Donations []donationResponse `json:"donations"`
	Summary   string             `json:"summary"`
}

func toDonationResponse(item export.Item) donationResponse {
	resp := donationResponse{
		ID:               item.Donation.ID,
		PaymentReference: item.Donation.PaymentReference,
		DonorName:        item.Donation.DonorName,
		Amount:           item.Donation.Amount,
		Status:           item.Donation.Status,
		CreatedAt:        item.Donation.CreatedAt,
	}

	if item.FilePath != "" {
		resp.ProofFile = filepath.Base(item.FilePath)
	}

	return resp
}

func (h *Handler) metadata(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	tmpDir, err := os.MkdirTemp("", "bantudesa-export-*")
	if err != nil {
		respond.Error(w, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	res, err := h.svc.Export(r.Context(), id, tmpDir)
	if err != nil {
		respond.Error(w, err)
		return
	}

	donations := make([]donationResponse, 0, len(res.Items))
	for _, item := range res.Items {
		donations = append(donations, toDonationResponse(item))
	}

	respond.JSON(w, http.StatusOK, exportMetadataResponse{
		Donations: donations,
		Summary:   h.svc.GenerateSummary(res),
	})
}

func (h *Handler) download(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	tmpDir, err := os.MkdirTemp("", "bantudesa-export-*")
	if err != nil {
		respond.Error(w, err)
		return
	}
	defer os.RemoveAll(tmpDir)

	res, err := h.svc.Export(r.Context(), id, tmpDir)
	if err != nil {
		respond.Error(w, err)
		return
	}

	if err := os.WriteFile(filepath.Join(tmpDir, "summary.txt"), []byte(h.svc.GenerateSummary(res)), 0o644); err != nil {
		respond.Error(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=\"ledger_%s_%s.zip\"", id.String()[:8], time.Now().Format("20060102")))

	if err := export.Zip(w, tmpDir); err != nil {
		slog.Error("failed to create zip", "error", err)
	}
}
