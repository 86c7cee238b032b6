package handlers

import (
	"log/slog"
	"net/http"

	"github.com/Dosada05/tournament-settlement/middleware"
	"github.com/Dosada05/tournament-settlement/realtime"
	"github.com/Dosada05/tournament-settlement/services"
	"github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	hub           *realtime.Hub
	payoutService *services.PayoutService
	upgrader      websocket.Upgrader
}

// NewWebSocketHandler accepts upgrades from the listed origins; an empty
// list or "*" allows any origin.
func NewWebSocketHandler(hub *realtime.Hub, ps *services.PayoutService, allowedOrigins []string) *WebSocketHandler {
	h := &WebSocketHandler{hub: hub, payoutService: ps}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

// ServeTournament обрабатывает GET /ws/tournaments/{tournamentID}.
// Комната турнира получает события реестра, поэтому доступна только
// организатору турнира и администратору.
func (h *WebSocketHandler) ServeTournament(w http.ResponseWriter, r *http.Request) {
	actor, err := middleware.GetActorFromContext(r)
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if err := h.payoutService.AuthorizeTournament(r.Context(), actor, tournamentID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	h.serve(w, r, realtime.TournamentRoom(tournamentID))
}

// ServeMe обрабатывает GET /ws/users/me: личные уведомления пользователя.
func (h *WebSocketHandler) ServeMe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserIDFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return
	}
	h.serve(w, r, realtime.UserRoom(userID))
}

func (h *WebSocketHandler) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade сам отвечает клиенту ошибкой.
		slog.Warn("websocket upgrade failed", slog.String("room", room), slog.Any("error", err))
		return
	}

	client := realtime.NewClient(h.hub, conn, room)
	if !h.hub.Join(client) {
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}

func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
