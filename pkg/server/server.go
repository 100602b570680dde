// Package server exposes the email ingest HTTP API. Emails are forwarded
// from the mailbox as base64-encoded raw messages; each accepted email is
// dispatched to its vendor processor and the resulting action is recorded
// in the backlog for the next reconciliation pass.
package server

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mailfin/ledgermail/pkg/action"
	"github.com/mailfin/ledgermail/pkg/mail"
	"github.com/mailfin/ledgermail/pkg/metrics"
	"github.com/mailfin/ledgermail/pkg/processor"
)

// Backlog records pending actions produced from ingested emails.
type Backlog interface {
	Insert(source string, act action.Action) (int64, error)
}

// Server handles email ingest requests.
type Server struct {
	backlog       Backlog
	registry      *processor.Registry
	token         string
	acceptedEmail string
	logger        *slog.Logger
}

// New creates an ingest server. The token guards the ingest endpoint; the
// accepted email is the only forwarding sender allowed through.
func New(backlog Backlog, registry *processor.Registry, token, acceptedEmail string, logger *slog.Logger) *Server {
	return &Server{
		backlog:       backlog,
		registry:      registry,
		token:         token,
		acceptedEmail: acceptedEmail,
		logger:        logger,
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(2 * time.Minute))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/ingest", s.handleIngest)

	return r
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		metrics.EmailsIngested.WithLabelValues("unauthorized").Inc()
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid token"})
		return
	}

	raw, err := readRawEmail(r.Body)
	if err != nil {
		metrics.EmailsIngested.WithLabelValues("malformed").Inc()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	outcome, status := s.ingest(r, raw)
	metrics.EmailsIngested.WithLabelValues(outcome).Inc()
	writeJSON(w, status, map[string]string{"status": outcome})
}

// ingest parses the forwarded message and routes the original email it
// wraps. Emails nothing claims are still accepted; the forwarder should not
// retry them.
func (s *Server) ingest(r *http.Request, raw []byte) (outcome string, status int) {
	forwarded, err := mail.ParseRaw(raw)
	if err != nil {
		s.logger.Warn("failed to parse forwarded message", "error", err)
		return "malformed", http.StatusBadRequest
	}

	if forwarded.From != s.acceptedEmail {
		s.logger.Warn("received email from disallowed address", "from", forwarded.From)
		return "disallowed", http.StatusAccepted
	}

	// The forwarder sends the entire raw original message as the plain
	// text body, so that is parsed again as a message of its own.
	original, err := mail.ParseRaw([]byte(forwarded.Text))
	if err != nil {
		s.logger.Warn("failed to parse original message", "error", err)
		return "malformed", http.StatusBadRequest
	}

	source, act, ok, err := s.registry.Dispatch(r.Context(), original)
	if err != nil {
		s.logger.Error("processor failed", "source", source, "error", err)
		return "failed", http.StatusInternalServerError
	}
	if !ok {
		s.logger.Info("no processor claimed email",
			"from", original.From, "subject", original.Subject)
		return "unmatched", http.StatusAccepted
	}
	if act == nil {
		s.logger.Info("processor ignored email", "source", source)
		return "ignored", http.StatusAccepted
	}

	id, err := s.backlog.Insert(source, *act)
	if err != nil {
		s.logger.Error("failed to record action", "source", source, "error", err)
		return "failed", http.StatusInternalServerError
	}

	metrics.ActionsCreated.WithLabelValues(source).Inc()
	s.logger.Info("recorded pending action",
		"id", id, "source", source, "payee", act.Match.ExpectedPayee,
		"total_cents", act.Match.ExpectedTotal)

	return "created", http.StatusAccepted
}

func (s *Server) authorized(r *http.Request) bool {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	return ok && token == s.token && s.token != ""
}

// readRawEmail decodes the base64 request body into the raw message bytes.
func readRawEmail(body io.Reader) ([]byte, error) {
	decoder := base64.NewDecoder(base64.StdEncoding, body)
	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("failed to decode request body: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty request body")
	}
	return raw, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
