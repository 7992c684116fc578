package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/service"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

type ReportsHTTP struct {
	svc *service.TicketService
	log zerolog.Logger
}

func NewReportsHTTP(s *service.TicketService, log zerolog.Logger) *ReportsHTTP {
	return &ReportsHTTP{svc: s, log: log}
}

// GET /api/reports/summary
// Returns: { byStatus: [{status, count}], openHighPriority }
func (h *ReportsHTTP) Summary() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := utils.IdentityFrom(r.Context())
		s, err := h.svc.Summary(r.Context(), id)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, s)
	}
}
