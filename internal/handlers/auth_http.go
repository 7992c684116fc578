package handlers

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/JoshiAarya/ai-ticket-app/internal/service"
	"github.com/JoshiAarya/ai-ticket-app/internal/utils"
)

type AuthHTTP struct {
	svc        *service.AuthService
	production bool
	log        zerolog.Logger
}

func NewAuthHTTP(s *service.AuthService, production bool, log zerolog.Logger) *AuthHTTP {
	return &AuthHTTP{svc: s, production: production, log: log}
}

// POST /api/auth/signup
func (h *AuthHTTP) Signup() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string   `json:"email"`
			Password string   `json:"password"`
			Skills   []string `json:"skills"`
		}
		if err := utils.DecodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		s, err := h.svc.Signup(r.Context(), in.Email, in.Password, in.Skills)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		http.SetCookie(w, utils.SessionCookie(s.Token, h.production))
		utils.JSON(w, http.StatusOK, map[string]any{"user": s.User})
	}
}

// POST /api/auth/login
func (h *AuthHTTP) Login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := utils.DecodeJSON(r, &in); err != nil {
			utils.Error(w, http.StatusBadRequest, "invalid json")
			return
		}
		s, err := h.svc.Login(r.Context(), in.Email, in.Password)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		http.SetCookie(w, utils.SessionCookie(s.Token, h.production))
		utils.JSON(w, http.StatusOK, map[string]any{"user": s.User})
	}
}

// POST /api/auth/logout
func (h *AuthHTTP) Logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, utils.ClearSessionCookie(h.production))
		utils.JSON(w, http.StatusOK, map[string]string{"message": "Logout successfully"})
	}
}

// GET /api/auth/me
func (h *AuthHTTP) Me() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := utils.IdentityFrom(r.Context())
		if !ok {
			utils.Error(w, http.StatusUnauthorized, "not authenticated")
			return
		}
		u, err := h.svc.Me(r.Context(), id)
		if err != nil {
			writeErr(w, r, h.log, err)
			return
		}
		utils.JSON(w, http.StatusOK, map[string]any{"user": u})
	}
}
