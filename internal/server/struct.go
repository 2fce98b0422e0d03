package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/calvia/persona/internal/agent"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Metrics holds the Prometheus instruments shared with the rest of the
	// process. If nil, a private registry is created.
	Metrics *Metrics
	// PersonaName is the persona's full name, reported by GET /api/profile.
	PersonaName string
	// DocumentChunks maps loaded document name to its indexed chunk count,
	// reported by GET /api/profile.
	DocumentChunks map[string]int
	// RetrievalEnabled reports whether chunk retrieval is active.
	RetrievalEnabled bool
	// StaticDir is the directory the web UI is served from (default: ui/static).
	StaticDir string
}

// chatter is the interface handleChat calls to stream a response.
// *agent.PersonaAgent satisfies it; tests inject a fake.
type chatter interface {
	// Chat streams the agent response for message to w, with client-supplied
	// prior turns in history.
	Chat(ctx context.Context, message string, history []agent.Turn, w io.Writer) error
}

// Server is the HTTP server that wraps the PersonaAgent.
type Server struct {
	// agent is the persona agent that handles all chat requests.
	agent chatter
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments for this server instance.
	metrics *Metrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// Message is the user's current message.
	Message string `json:"message"`
	// History holds the prior conversation turns, oldest first.
	History []agent.Turn `json:"history"`
}

// profileDocument describes one loaded background document in GET /api/profile.
type profileDocument struct {
	// Name is the document name (file stem, e.g. "resume").
	Name string `json:"name"`
	// Chunks is the number of indexed chunks from this document.
	// Zero when retrieval is disabled.
	Chunks int `json:"chunks"`
}

// profileResponse is the JSON response for GET /api/profile.
type profileResponse struct {
	// Name is the persona's full name.
	Name string `json:"name"`
	// RetrievalEnabled reports whether chunk retrieval is active.
	RetrievalEnabled bool `json:"retrievalEnabled"`
	// Documents lists the loaded background documents, sorted by name.
	Documents []profileDocument `json:"documents"`
	// TotalChunks is the total number of indexed chunks across all documents.
	TotalChunks int `json:"totalChunks"`
}
