// Package api is the operator-facing debug surface that supplements
// spec.md's distilled core: a health check, a JSON status snapshot, and a
// websocket stream of decoded bus traffic, for watching an election or a
// crash recovery live. Routing follows the teacher's go-chi usage; the
// streaming endpoint follows its gorilla/websocket usage.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/canonical/sqliteweb/internal/bus"
	"github.com/canonical/sqliteweb/internal/coordinator"
	"github.com/canonical/sqliteweb/internal/logger"
)

// StatusProvider is the subset of coordinator.Coordinator the debug API
// needs.
type StatusProvider interface {
	Snapshot() coordinator.Snapshot
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewRouter builds the debug HTTP surface: GET /healthz, GET /status, and
// GET /events (a websocket stream of decoded bus messages from eventsBus).
func NewRouter(status StatusProvider, eventsBus bus.Bus) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	r.Get("/healthz", handleHealthz)
	r.Get("/status", handleStatus(status))
	r.Get("/events", handleEvents(eventsBus))

	return r
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleStatus(status StatusProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if err := json.NewEncoder(w).Encode(status.Snapshot()); err != nil {
			logger.Warn("api failed to encode status", logger.Ctx{"err": err})
		}
	}
}

func handleEvents(eventsBus bus.Bus) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Warn("api failed to upgrade websocket", logger.Ctx{"err": err})
			return
		}
		defer conn.Close()

		sub := eventsBus.Subscribe()
		defer sub.Close()

		for msg := range sub.C {
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
