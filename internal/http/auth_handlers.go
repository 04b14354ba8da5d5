package httpapi

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"cargamasiva-backend-go/internal/models"
	"cargamasiva-backend-go/internal/rut"
	"cargamasiva-backend-go/internal/services"

	"github.com/google/uuid"
)

type LoginRequest struct {
	RUT      string `json:"rut"`
	Password string `json:"password"`
}

type TokenResponse struct {
	AccessToken        string   `json:"accessToken"`
	ExpiresAt          int64    `json:"expiresAt"`
	RUT                string   `json:"rut"`
	Roles              []string `json:"roles"`
	MustChangePassword bool     `json:"debeCambiarPassword"`
}

func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, "Solicitud inválida")
		return
	}
	if strings.TrimSpace(req.RUT) == "" || req.Password == "" {
		WriteError(w, http.StatusBadRequest, "RUT y contraseña son obligatorios")
		return
	}
	session := models.Session{ID: uuid.NewString(), IP: clientIP(r), UserAgent: r.UserAgent()}
	cred, err := services.Authenticate(r.Context(), s.DB, s.Hasher, req.RUT, req.Password, session, time.Now().UTC())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	roles, err := services.FetchRoleCodes(r.Context(), s.DB, cred.RUT)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	token, exp, err := s.Tokens.CreateAccessToken(cred.RUT, session.ID, roles)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, TokenResponse{
		AccessToken:        token,
		ExpiresAt:          exp,
		RUT:                rut.Format(cred.RUT),
		Roles:              roles,
		MustChangePassword: cred.ForcePasswordChange,
	})
}

func (s *Server) Logout(w http.ResponseWriter, r *http.Request) {
	claims := currentClaims(r)
	if err := services.EndSession(r.Context(), s.DB, claims.RUT, claims.SessionID); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
