package campaign

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/bantudesa/internal/auth"
	"github.com/MrJamesThe3rd/bantudesa/internal/cache"
	"github.com/MrJamesThe3rd/bantudesa/internal/campaign"
	"github.com/MrJamesThe3rd/bantudesa/internal/donation"
	"github.com/MrJamesThe3rd/bantudesa/internal/http/respond"
)

type Handler struct {
	registry *campaign.Service
	ledger   *donation.Ledger
	views    *cache.CampaignCache
}

// NewHandler wires the campaign routes. views may be nil to disable caching.
func NewHandler(registry *campaign.Service, ledger *donation.Ledger, views *cache.CampaignCache) *Handler {
	return &Handler{registry: registry, ledger: ledger, views: views}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.With(auth.Require(auth.RoleCreator, auth.RoleAdmin)).Post("/", h.create)
	r.With(auth.Require()).Patch("/{id}", h.update)
	r.With(auth.Require(auth.RoleAdmin)).Post("/{id}/cancel", h.cancel)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := campaign.ListFilter{Search: q.Get("search")}

	if s := q.Get("status"); s != "" {
		st, err := campaign.ParseStatus(s)
		if err != nil {
			respond.Error(w, err)
			return
		}

		filter.Status = &st
	}

	var err error

	if filter.Page, err = intParam(q.Get("page")); err != nil {
		respond.BadRequest(w, "invalid page")
		return
	}

	if filter.PageSize, err = intParam(q.Get("limit")); err != nil {
		respond.BadRequest(w, "invalid limit")
		return
	}

	page, err := h.registry.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toListResponse(page, h.registry.Now()))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	if body, ok := h.views.Get(r.Context(), id); ok {
		respond.Raw(w, http.StatusOK, body)
		return
	}

	c, err := h.registry.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	supporters, err := h.ledger.Supporters(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	now := h.registry.Now()

	body, err := json.Marshal(detailResponse{
		campaignResponse: toResponse(c, now),
		Supporters:       toSupporters(supporters),
	})
	if err != nil {
		slog.Error("failed to encode campaign view", "error", err)
		respond.Fail(w, http.StatusInternalServerError, "internal_error", "internal error")

		return
	}

	if c.Status == campaign.StatusActive {
		h.views.Set(r.Context(), id, body, c.Deadline, now)
	}

	respond.Raw(w, http.StatusOK, body)
}

type createCampaignRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ImageURL     string    `json:"imageUrl"`
	Location     string    `json:"location"`
	ContactPhone string    `json:"contactPhone"`
	TargetAmount int64     `json:"targetAmount"`
	Deadline     time.Time `json:"deadline"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	c, err := h.registry.Create(r.Context(), campaign.CreateParams{
		Title:        req.Title,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
		TargetAmount: req.TargetAmount,
		Deadline:     req.Deadline,
		CreatorID:    caller.ID,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusCreated, toResponse(c, h.registry.Now()))
}

type updateCampaignRequest struct {
	Title        *string    `json:"title,omitempty"`
	Description  *string    `json:"description,omitempty"`
	ImageURL     *string    `json:"imageUrl,omitempty"`
	Location     *string    `json:"location,omitempty"`
	ContactPhone *string    `json:"contactPhone,omitempty"`
	TargetAmount *int64     `json:"targetAmount,omitempty"`
	Deadline     *time.Time `json:"deadline,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	var req updateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.BadRequest(w, err.Error())
		return
	}

	current, err := h.registry.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	if current.CreatorID != caller.ID && !caller.Is(auth.RoleAdmin) {
		respond.Forbidden(w)
		return
	}

	c, err := h.registry.Update(r.Context(), id, campaign.UpdateParams{
		Title:        req.Title,
		Description:  req.Description,
		ImageURL:     req.ImageURL,
		Location:     req.Location,
		ContactPhone: req.ContactPhone,
		TargetAmount: req.TargetAmount,
		Deadline:     req.Deadline,
	})
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(c, h.registry.Now()))
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "invalid id")
		return
	}

	c, err := h.registry.Cancel(r.Context(), id)
	if err != nil {
		respond.Error(w, err)
		return
	}

	respond.JSON(w, http.StatusOK, toResponse(c, h.registry.Now()))
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}

	return strconv.Atoi(s)
}
