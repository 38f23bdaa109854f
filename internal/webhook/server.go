// Package webhook serves a read-only HTTP API over sealed cases.
package webhook

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/user/custodian/internal/assistant"
	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/state"
	"github.com/user/custodian/internal/transport"
	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/pkg/llm"
)

const maxImageBytes = 8 << 20

// Server is a lightweight HTTP handler for the case API.
type Server struct {
	store     types.CaseStore
	audits    *state.AuditLog
	assistant *assistant.Assistant
	mux       *http.ServeMux
	log       *slog.Logger
}

// NewServer creates a Server over store. audits and ai may be nil.
func NewServer(store types.CaseStore, audits *state.AuditLog, ai *assistant.Assistant) *Server {
	s := &Server{
		store:     store,
		audits:    audits,
		assistant: ai,
		mux:       http.NewServeMux(),
		log:       logging.New("webhook"),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/cases", s.handleListCases)
	s.mux.HandleFunc("GET /api/cases/{id}", s.handleGetCase)
	s.mux.HandleFunc("GET /api/cases/{id}/report", s.handleReport)
	s.mux.HandleFunc("GET /api/cases/{id}/seal.png", s.handleSealPNG)
	s.mux.HandleFunc("POST /api/cases/{id}/ask", s.handleAsk)
	s.mux.HandleFunc("POST /api/verify", s.handleVerify)
	s.mux.HandleFunc("POST /api/verify/qr", s.handleVerifyQR)
	s.mux.HandleFunc("GET /api/audits", s.handleAudits)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type caseSummary struct {
	ID            types.CaseID `json:"id"`
	Name          string       `json:"name"`
	CreatedAt     string       `json:"created_at"`
	Seal          string       `json:"seal"`
	EvidenceCount int          `json:"evidence_count"`
}

func summarize(rec *types.CaseRecord) caseSummary {
	return caseSummary{
		ID:            rec.ID,
		Name:          rec.Name,
		CreatedAt:     rec.CreatedAt.Format(time.RFC3339),
		Seal:          rec.Seal,
		EvidenceCount: len(rec.Evidence),
	}
}

func (s *Server) handleListCases(w http.ResponseWriter, r *http.Request) {
	cases, err := s.store.GetAll(r.Context())
	if err != nil {
		s.log.Error("list cases failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	result := make([]caseSummary, 0, len(cases))
	for _, rec := range cases {
		result = append(result, summarize(rec))
	}
	writeJSON(w, http.StatusOK, result)
}

// lookup resolves the {id} path value, writing the error response itself.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*types.CaseRecord, bool) {
	rec, err := state.Find(r.Context(), s.store, r.PathValue("id"))
	if err != nil {
		if errors.Is(err, state.ErrCaseNotFound) {
			http.Error(w, `{"error":"case not found"}`, http.StatusNotFound)
		} else {
			s.log.Error("find case failed", "id", r.PathValue("id"), "error", err)
			http.Error(w, `{"error":"case lookup failed"}`, http.StatusBadRequest)
		}
		return nil, false
	}
	return rec, true
}

func (s *Server) handleGetCase(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, rec.Report)
}

func (s *Server) handleSealPNG(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}
	png, err := transport.EncodePNG(rec.Seal, transport.DefaultSize)
	if err != nil {
		s.log.Error("encode seal failed", "case", rec.ID, "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// verifyRequest is the JSON body for POST /api/verify.
type verifyRequest struct {
	Seal string `json:"seal"`
}

type verifyResponse struct {
	Matched bool         `json:"matched"`
	CaseID  types.CaseID `json:"case_id,omitempty"`
	Message string       `json:"message"`
}

func (s *Server) verify(w http.ResponseWriter, r *http.Request, candidate string) {
	cases, err := s.store.GetAll(r.Context())
	if err != nil {
		s.log.Error("list cases failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	v := seal.Verify(candidate, cases)
	resp := verifyResponse{Matched: v.Matched, Message: v.Message}
	if v.Case != nil {
		resp.CaseID = v.Case.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Seal == "" {
		http.Error(w, `{"error":"seal is required"}`, http.StatusBadRequest)
		return
	}
	s.verify(w, r, req.Seal)
}

func (s *Server) handleVerifyQR(w http.ResponseWriter, r *http.Request) {
	candidate, err := transport.Decode(io.LimitReader(r.Body, maxImageBytes))
	if err != nil {
		http.Error(w, `{"error":"no seal QR code in image"}`, http.StatusBadRequest)
		return
	}
	s.verify(w, r, candidate)
}

// askRequest is the JSON body for POST /api/cases/{id}/ask.
type askRequest struct {
	Question string        `json:"question"`
	History  []llm.Message `json:"history,omitempty"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, `{"error":"question is required"}`, http.StatusBadRequest)
		return
	}
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	answer, err := s.assistant.Ask(r.Context(), rec, req.History, req.Question)
	if errors.Is(err, assistant.ErrUnavailable) {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.log.Error("assistant failed", "case", rec.ID, "error", err)
		http.Error(w, `{"error":"assistant failed"}`, http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	if s.audits == nil {
		http.Error(w, `{"error":"audit log not configured"}`, http.StatusServiceUnavailable)
		return
	}
	results, err := s.audits.List()
	if err != nil {
		s.log.Error("list audits failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, results)
}
