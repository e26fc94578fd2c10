// Package api exposes the HTTP front door: user registration and
// management, a health probe and a test notification endpoint. The
// worker never depends on this package; both sides meet at the store.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"mkobal/avtowatch/internal/model"
	"mkobal/avtowatch/logger"
	"mkobal/avtowatch/services/notify"
	"mkobal/avtowatch/services/store"
)

// Dispatcher sends push notifications. The test endpoint borrows the
// worker's dispatcher so a test message exercises the real channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, userID string, creds model.Credentials, listings []model.Listing) (notify.Result, error)
}

// Reporter exposes the most recent cycle report for the health probe.
type Reporter interface {
	LastReport() *model.CycleReport
}

// Options carries the server's dependencies.
type Options struct {
	Store      store.Store
	Dispatcher Dispatcher
	Reporter   Reporter
}

// Server routes API requests onto the store and the dispatcher.
type Server struct {
	store      store.Store
	dispatcher Dispatcher
	reporter   Reporter
	log        *logger.Logger
}

// New creates a server from its dependencies.
func New(opts Options) *Server {
	return &Server{
		store:      opts.Store,
		dispatcher: opts.Dispatcher,
		reporter:   opts.Reporter,
		log:        logger.ForAPI(),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/users/register", s.handleRegister)
	mux.HandleFunc("GET /api/users/{id}", s.handleGetUser)
	mux.HandleFunc("PUT /api/users/{id}", s.handleUpdateUser)
	mux.HandleFunc("DELETE /api/users/{id}", s.handleDeactivateUser)
	mux.HandleFunc("POST /api/users/{id}/test-notification", s.handleTestNotification)
	mux.HandleFunc("GET /api/health", s.handleHealth)
	return withCORS(mux)
}

// withCORS answers preflights and opens the API to browser clients.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
