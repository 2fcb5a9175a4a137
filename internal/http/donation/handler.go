package donation

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/auth"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/respond"
)

type Handler struct {
	ledger   *donation.Ledger
	workflow *donation.Workflow
}

func NewHandler(ledger *donation.Ledger, workflow *donation.Workflow) *Handler {
	return &Handler{ledger: ledger, workflow: workflow}
}

// CampaignRoutes registers the donation routes nested under /campaigns.
func (h *Handler) CampaignRoutes(r chi.Router) {
	r.Post("/{id}/donations", h.submit)
	r.Get("/{id}/donations", h.listByCampaign)
}

func (h *Handler) Routes(r chi.Router) {
	r.With(auth.Require(auth.RoleAdmin)).Get("/pending", h.pending)
	r.With(auth.Require()).Get("/mine", h.mine)
	r.With(auth.Require()).Get("/{id}", h.get)
	r.With(auth.Require(auth.RoleAdmin)).Post("/{id}/decision", h.decide)
}

type submitRequest struct {
	Amount      int64  `json:"amount"`
	ProofURL    string `json:"proofUrl"`
	DonorName   string `json:"donorName"`
	DonorEmail  string `json:"donorEmail"`
	IsAnonymous bool   `json:"isAnonymous"`
	Message     string `json:"message"`
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	donor := donation.Donor{
		Name:      req.DonorName,
		Email:     req.DonorEmail,
		Anonymous: req.IsAnonymous,
	}

	if caller, ok := auth.FromContext(r.Context()); ok {
		donor.ID = &caller.ID

		if donor.Name == "" {
			donor.Name = caller.Name
		}

		if donor.Email == "" {
			donor.Email = caller.Email
		}
	}

	d, err := h.ledger.Submit(r.Context(), donation.SubmitParams{
		CampaignID: campaignID,
		Amount:     req.Amount,
		ProofURL:   req.ProofURL,
		Donor:      donor,
		Message:    req.Message,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, submitResponse{
		ID:               d.ID,
		Status:           d.Status,
		PaymentReference: d.PaymentReference,
		Amount:           d.Amount,
		CreatedAt:        d.CreatedAt,
	})
}

// listByCampaign shows approved donations publicly. Administrators see every
// donation and may filter by status.
func (h *Handler) listByCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	caller, ok := auth.FromContext(r.Context())
	if !ok || !caller.Is(auth.RoleAdmin) {
		ds, err := h.ledger.Supporters(r.Context(), campaignID)
		if err != nil {
			respond.Error(w, err)
			return
		}

		respond.JSON(w, http.StatusOK, toPublicList(ds))

		return
	}

	var status *donation.Status

	if s := r.URL.Query().Get("status"); s != "" {
		st, err := donation.ParseStatus(s)
		if err != nil {
			respond.Error(w, err)
			return
		}

		status = &st
	}

	ds, err := h.ledger.ListByCampaign(r.Context(), campaignID, status)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(ds))
}

func (h *Handler) pending(w http.ResponseWriter, r *http.Request) {
	ds, err := h.ledger.ListPending(r.Context())
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(ds))
}

func (h *Handler) mine(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	ds, err := h.ledger.ListByDonor(r.Context(), caller.ID)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponseList(ds))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	d, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	owner := d.DonorID != nil && *d.DonorID == caller.ID
	if !owner && !caller.Is(auth.RoleAdmin) {
		respond.Forbidden(w)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(d))
}

type decisionRequest struct {
	Outcome string `json:"outcome"`
	Reason  string `json:"reason"`
}

func (h *Handler) decide(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	var req decisionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	outcome, err := donation.ParseOutcome(req.Outcome)
	if err != nil {
		respond.Error(w, err)
		return
	}

	dec, err := h.workflow.Decide(r.Context(), donation.DecideParams{
		DonationID: id,
		Outcome:    outcome,
		ActorID:    caller.ID,
		Reason:     req.Reason,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toDecisionResponse(dec))
}
