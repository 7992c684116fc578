package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/service"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

type TicketHTTP struct {
	svc *service.TicketService
	log zerolog.Logger
}

func NewTicketHTTP(s *service.TicketService, log zerolog.Logger) *TicketHTTP {
	return &TicketHTTP{svc: s, log: log}
}

// -----------------------------------------------------------------------------
// GET /api/tickets?limit=&offset=
// -----------------------------------------------------------------------------
func (h *TicketHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		qv := r.URL.Query()
		limit := utils.QueryInt(qv, "limit", 0)
		offset := utils.QueryInt(qv, "offset", 0)

		id, _ := utils.IdentityFrom(r.Context())
		items, err := h.svc.List(r.Context(), id, limit, offset)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"tickets": items})
	}
}

// -----------------------------------------------------------------------------
// POST /api/tickets
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Create() http.HandlerFunc {
	type inDTO struct {
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var in inDTO
		if err := utils.DecodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		id, _ := utils.IdentityFrom(r.Context())
		t, err := h.svc.Create(r.Context(), id, in.Title, in.Description)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusCreated, map[string]any{
			"message": "Ticket created and processing started",
			"ticket":  t,
		})
	}
}

// -----------------------------------------------------------------------------
// GET /api/tickets/{id}
// -----------------------------------------------------------------------------
func (h *TicketHTTP) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ticketID := chi.URLParam(r, "id")
		if ticketID == "" {
			utils.Error(w, http.StatusBadRequest, "missing id")
			return
		}
		id, _ := utils.IdentityFrom(r.Context())
		t, err := h.svc.Get(r.Context(), id, ticketID)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"ticket": t})
	}
}

// -----------------------------------------------------------------------------
// PATCH /api/tickets/{id}/done
// -----------------------------------------------------------------------------
func (h *TicketHTTP) MarkDone() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := utils.IdentityFrom(r.Context())
		t, err := h.svc.MarkDone(r.Context(), id, chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"ticket": t})
	}
}
