package httpapi

import (
	"net/http"

	"cargamasiva-backend-go/internal/services"

	"github.com/gorilla/websocket"
)

// ProgressSocket streams batch progress. Browsers cannot set headers on a
// websocket, so the access token travels in the query string.
func (s *Server) ProgressSocket(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Tokens.VerifyAccess(r.URL.Query().Get("token"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !services.HasRole(claims.Roles, services.RoleAdmin) {
		WriteError(w, http.StatusForbidden, "No autorizado")
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.Progress.Add(conn)
	defer func() {
		s.Progress.Remove(conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
