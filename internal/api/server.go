// Package api provides an admin HTTP+WebSocket surface for operating a
// running bot instance remotely: health/status reporting, an emergency
// stop-all, and a live event feed for an optional dashboard.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"inputbot/internal/scheduler"
	"inputbot/internal/user"
	"inputbot/internal/vcontroller"
)

// Config tunes the admin server. TokenHash, if non-empty, is a bcrypt
// hash every non-health request's bearer token must match; an empty
// TokenHash disables auth entirely (local/trusted deployments).
type Config struct {
	TokenHash string
}

// Server is the admin API: status/stopall/health over HTTP, plus a
// broadcast WebSocket feed for the optional dashboard.
type Server struct {
	cfg     Config
	manager *vcontroller.Manager
	sched   *scheduler.Scheduler
	users   user.Store
	hub     *hub
}

// NewServer creates an admin Server bound to the given core
// collaborators. It does not start listening until Start is called.
func NewServer(cfg Config, manager *vcontroller.Manager, sched *scheduler.Scheduler, users user.Store) *Server {
	return &Server{
		cfg:     cfg,
		manager: manager,
		sched:   sched,
		users:   users,
		hub:     newHub(),
	}
}

// Start listens on addr (host:port) and blocks, serving until the
// listener fails or the process exits. The caller typically runs it in
// its own goroutine.
func (s *Server) Start(addr string) error {
	go s.hub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/stopall", s.handleStopAll)
	mux.HandleFunc("/ws", s.hub.handleWebSocket)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("api: listen on %s: %w", addr, err)
	}

	log.Printf("api: admin server listening on %s", addr)
	server := &http.Server{Handler: s.recoverMiddleware(s.authMiddleware(mux))}
	if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: server stopped: %w", err)
	}
	return nil
}

// BroadcastEvent pushes a dashboard-facing event to every connected
// admin websocket client. Safe to call before any client has connected.
func (s *Server) BroadcastEvent(kind string, payload any) {
	s.hub.broadcast(frame{Kind: kind, Payload: payload})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("api: panic recovered: %v", err)
				http.Error(w, "internal server error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || s.cfg.TokenHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		const prefix = "Bearer "
		auth := r.Header.Get("Authorization")
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		token := auth[len(prefix):]
		if bcrypt.CompareHashAndPassword([]byte(s.cfg.TokenHash), []byte(token)) != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// StatusSnapshot is the /api/status payload: one entry per port that
// has had a sequence submitted to the scheduler, plus the user count.
type StatusSnapshot struct {
	Ports     []scheduler.PortStatus `json:"ports"`
	UserCount int                    `json:"user_count"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatusSnapshot{
		Ports:     s.sched.Status(),
		UserCount: len(s.users.All()),
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStopAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	log.Printf("api: stopall requested from %s", r.RemoteAddr)
	s.sched.StopAll()
	s.hub.broadcast(frame{Kind: "stopall"})
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: failed to encode response: %v", err)
	}
}

// HashToken bcrypt-hashes a plaintext admin token for storage in
// Config.TokenHash.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
