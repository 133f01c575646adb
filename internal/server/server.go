// Package server is a development backend for the catalog, draw, session,
// terms and payment endpoints. Accounts live in memory.
package server

import (
	cryptorand "crypto/rand"
	"encoding/hex"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/deck"
	"github.com/naveenspark/arcana/pkg/domain"
)

// PackSize is the number of drucoins one captured order adds.
const PackSize = 10

// Server serves the API. Safe for concurrent use.
type Server struct {
	cards   []domain.CardMeta
	spreads []domain.SpreadDef
	log     *zap.Logger
	metrics Metrics
	reg     *prometheus.Registry

	mu       sync.Mutex
	rng      *rand.Rand
	accounts map[string]*account // by bearer token
	orders   map[string]string   // order id -> token
}

type account struct {
	snap     domain.SessionSnapshot
	captured map[string]bool
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.log = l } }

// WithMetrics enables Prometheus collection and the /metrics endpoint.
func WithMetrics() Option {
	return func(s *Server) {
		s.reg = prometheus.NewRegistry()
		s.metrics = NewMetrics(s.reg)
	}
}

// WithSeed makes draws reproducible.
func WithSeed(a, b uint64) Option {
	return func(s *Server) { s.rng = rand.New(rand.NewPCG(a, b)) }
}

// WithAccount registers a bearer token for a user.
func WithAccount(token string, snap domain.SessionSnapshot) Option {
	return func(s *Server) {
		s.accounts[token] = &account{snap: snap, captured: make(map[string]bool)}
	}
}

// New returns a server for the given deck and spreads.
func New(cards []domain.CardMeta, spreads []domain.SpreadDef, opts ...Option) *Server {
	s := &Server{
		cards:    cards,
		spreads:  spreads,
		log:      zap.NewNop(),
		metrics:  noopMetrics{},
		rng:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		accounts: make(map[string]*account),
		orders:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed, instrumented handler.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	api.HandleFunc("GET /api/spreads", s.handleSpreads)
	api.HandleFunc("GET /api/decks", s.handleDecks)
	api.HandleFunc("POST /api/draw", s.handleDraw)
	api.HandleFunc("GET /session/validate", s.handleValidate)
	api.HandleFunc("POST /terms/accept", s.handleAcceptTerms)
	api.HandleFunc("POST /paypal/create-order", s.handleCreateOrder)
	api.HandleFunc("POST /paypal/capture-order", s.handleCaptureOrder)
	api.HandleFunc("POST /captcha/verify", s.handleCaptcha)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.reg != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.reg, promhttp.HandlerOpts{}))
	}
	mux.Handle("/", instrument(s.metrics, api))
	return mux
}

func (s *Server) handleSpreads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.spreads)
}

func (s *Server) handleDecks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.cards)
}

func (s *Server) handleDraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SpreadID string `json:"spreadId"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spread, ok := s.findSpread(req.SpreadID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown spread")
		return
	}

	s.mu.Lock()
	cards, err := deck.Draw(s.cards, spread.Size(), nil, s.rng)
	s.mu.Unlock()
	if err != nil {
		s.log.Warn("draw failed", zap.String("spread", spread.ID), zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.metrics.IncDraws(spread.ID)
	writeJSON(w, http.StatusOK, domain.DrawResult{SpreadID: spread.ID, Cards: cards})
}

func (s *Server) findSpread(id string) (domain.SpreadDef, bool) {
	for _, sp := range s.spreads {
		if sp.ID == id {
			return sp, true
		}
	}
	return domain.SpreadDef{}, false
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	acct := s.accountLocked(r)
	var snap domain.SessionSnapshot
	if acct != nil {
		snap = acct.snap
	}
	s.mu.Unlock()
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleAcceptTerms(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Version string `json:"version"`
	}
	if err := readJSON(r, &req); err != nil || req.Version == "" {
		writeOK(w, false, "version is required")
		return
	}
	s.mu.Lock()
	acct := s.accountLocked(r)
	var uid string
	if acct != nil {
		acct.snap.NeedsTerms = false
		uid = acct.snap.UID
	}
	s.mu.Unlock()
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	s.log.Info("terms accepted", zap.String("uid", uid), zap.String("version", req.Version))
	writeOK(w, true, "")
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	id, err := newOrderID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "order id")
		return
	}
	s.mu.Lock()
	acct := s.accountLocked(r)
	if acct != nil {
		s.orders[id] = bearer(r)
	}
	s.mu.Unlock()
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "orderID": id})
}

func (s *Server) handleCaptureOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OrderID string `json:"orderID"`
	}
	if err := readJSON(r, &req); err != nil {
		writeOK(w, false, err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct := s.accountLocked(r)
	if acct == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if s.orders[req.OrderID] != bearer(r) {
		writeOK(w, false, "unknown order")
		return
	}
	if !acct.captured[req.OrderID] {
		acct.captured[req.OrderID] = true
		acct.snap.Drucoins += PackSize
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "drucoins": acct.snap.Drucoins})
}

func (s *Server) handleCaptcha(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := readJSON(r, &req); err != nil || req.Token == "" {
		writeOK(w, false, "missing token")
		return
	}
	writeOK(w, true, "")
}

func (s *Server) accountLocked(r *http.Request) *account {
	tok := bearer(r)
	if tok == "" {
		return nil
	}
	return s.accounts[tok]
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(tok)
	}
	return ""
}

func newOrderID() (string, error) {
	b := make([]byte, 8)
	if _, err := cryptorand.Read(b); err != nil {
		return "", err
	}
	return "ORD-" + strings.ToUpper(hex.EncodeToString(b)), nil
}

const maxRequestBody = 64 << 10

func readJSON(r *http.Request, v any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return errors.New("empty body")
	}
	return json.Unmarshal(data, v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeOK(w http.ResponseWriter, ok bool, msg string) {
	body := map[string]any{"ok": ok}
	if msg != "" {
		body["error"] = msg
	}
	writeJSON(w, http.StatusOK, body)
}
