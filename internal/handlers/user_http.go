package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/service"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

type UserHTTP struct {
	svc *service.AuthService
	log zerolog.Logger
}

func NewUserHTTP(s *service.AuthService, log zerolog.Logger) *UserHTTP {
	return &UserHTTP{svc: s, log: log}
}

// GET /api/auth/users
func (h *UserHTTP) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, _ := utils.IdentityFrom(r.Context())
		users, err := h.svc.ListUsers(r.Context(), id)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, users)
	}
}

// POST /api/auth/update-user
func (h *UserHTTP) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email  string   `json:"email"`
			Role   string   `json:"role"`
			Skills []string `json:"skills"`
		}
		if err := utils.DecodeJSON(r, &in); err != nil || in.Email == "" {
			utils.Error(w, http.StatusBadRequest, "invalid request")
			return
		}
		id, _ := utils.IdentityFrom(r.Context())
		if _, err := h.svc.UpdateUser(r.Context(), id, in.Email, in.Role, in.Skills); err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]string{"message": "User updated successfully"})
	}
}
