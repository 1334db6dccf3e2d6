// Package httpapi exposes the reporting backend over HTTP: the intake
// chat endpoints, access-code resume, the moderation surface, the abuse
// dashboards, and operational endpoints.
package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/speakfree/reporting/internal/history"
	"github.com/speakfree/reporting/internal/intake"
	"github.com/speakfree/reporting/internal/metrics"
	"github.com/speakfree/reporting/internal/moderation"
	"github.com/speakfree/reporting/internal/trust"
)

// Server bundles the HTTP handlers and their dependencies.
type Server struct {
	intake  *intake.Service
	gate    *moderation.Gate
	modLog  *moderation.Store
	engine  *trust.Engine
	history *history.Store
}

// NewServer creates the HTTP API server.
func NewServer(intakeSvc *intake.Service, gate *moderation.Gate, modLog *moderation.Store,
	engine *trust.Engine, hist *history.Store) *Server {
	return &Server{
		intake:  intakeSvc,
		gate:    gate,
		modLog:  modLog,
		engine:  engine,
		history: hist,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/chat", func(r chi.Router) {
		r.Post("/init", s.handleChatInit)
		r.Post("/message", s.handleChatMessage)
		r.Post("/verify-access", s.handleVerifyAccess)
		r.Get("/messages/{sessionID}", s.handleMessages)
		r.Get("/access-code/{sessionID}", s.handleAccessCode)
		r.Get("/admin-reply/{sessionID}", s.handleAdminReplyCheck)
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Get("/conversations", s.handleAdminList)
		r.Get("/conversations/{sessionID}", s.handleAdminDetail)
		r.Delete("/conversations/{sessionID}", s.handleAdminDelete)
		r.Post("/reply", s.handleAdminReply)
	})

	r.Route("/api/moderation", func(r chi.Router) {
		r.Post("/check", s.handleModerationCheck)
		r.Post("/analyze", s.handleModerationAnalyze)
		r.Get("/stats", s.handleModerationStats)
	})

	r.Route("/api/abuse", func(r chi.Router) {
		r.Post("/analyze", s.handleAbuseAnalyze)
		r.Get("/stats", s.handleAbuseStats)
		r.Get("/suspicious", s.handleSuspicious)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChatInit(w http.ResponseWriter, r *http.Request) {
	session, err := s.intake.Init(r.Context(), clientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

type chatMessageRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

func (s *Server) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	var req chatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}

	reply, err := s.intake.Message(r.Context(), req.SessionID, req.Message, clientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, reply)
}

type verifyAccessRequest struct {
	AccessCode string `json:"access_code"`
}

func (s *Server) handleVerifyAccess(w http.ResponseWriter, r *http.Request) {
	var req verifyAccessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.AccessCode == "" {
		respondError(w, http.StatusBadRequest, "access_code is required")
		return
	}

	resumed, err := s.intake.VerifyAccess(r.Context(), req.AccessCode, clientIP(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resumed)
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	var since time.Time
	if v := r.URL.Query().Get("since"); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		since = parsed
	}

	messages, err := s.intake.Messages(r.Context(), sessionID, since)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleAccessCode(w http.ResponseWriter, r *http.Request) {
	code, err := s.intake.AccessCode(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"access_code": code})
}

func (s *Server) handleAdminReplyCheck(w http.ResponseWriter, r *http.Request) {
	has, err := s.intake.HasAdminReply(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"has_admin_reply": has})
}

func (s *Server) handleAdminList(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	conversations, err := s.intake.AdminList(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"conversations": conversations})
}

func (s *Server) handleAdminDetail(w http.ResponseWriter, r *http.Request) {
	detail, err := s.intake.AdminDetail(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

func (s *Server) handleAdminDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.intake.AdminDelete(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type adminReplyRequest struct {
	SessionID string `json:"session_id"`
	AdminName string `json:"admin_name"`
	Message   string `json:"message"`
}

func (s *Server) handleAdminReply(w http.ResponseWriter, r *http.Request) {
	var req adminReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.SessionID == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "session_id and message are required")
		return
	}

	if err := s.intake.AdminReply(r.Context(), req.SessionID, req.AdminName, req.Message); err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

type moderationCheckRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleModerationCheck(w http.ResponseWriter, r *http.Request) {
	var req moderationCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	verdict := s.gate.Check(req.Message)

	action := "allowed"
	if !verdict.Allowed {
		action = "blocked"
	}
	if s.modLog != nil {
		if err := s.modLog.Log(r.Context(), req.Message, verdict, action); err != nil {
			log.Printf("[httpapi] moderation log: %v", err)
		}
	}
	metrics.ModerationChecks.WithLabelValues(action).Inc()

	respondJSON(w, http.StatusOK, verdict)
}

// handleModerationAnalyze scores a message without logging it, for
// admin tooling that inspects borderline content.
func (s *Server) handleModerationAnalyze(w http.ResponseWriter, r *http.Request) {
	var req moderationCheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"score":        s.gate.Score(req.Message),
		"content_type": moderation.DetectContentType(req.Message),
	})
}

func (s *Server) handleModerationStats(w http.ResponseWriter, r *http.Request) {
	if s.modLog == nil {
		respondError(w, http.StatusServiceUnavailable, "moderation log unavailable")
		return
	}
	stats, err := s.modLog.GetStats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

type abuseAnalyzeRequest struct {
	ReportID string `json:"report_id"`
	SchoolID int64  `json:"school_id"`
	Message  string `json:"message"`
	IP       string `json:"ip_address"`
}

func (s *Server) handleAbuseAnalyze(w http.ResponseWriter, r *http.Request) {
	var req abuseAnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ip := req.IP
	if ip == "" {
		ip = clientIP(r)
	}
	assessment := s.engine.Assess(r.Context(),
		trust.Draft{ReportID: req.ReportID, SchoolID: req.SchoolID, Message: req.Message},
		trust.Metadata{IPAddress: ip})

	metrics.Assessments.WithLabelValues(string(assessment.Severity)).Inc()
	metrics.TrustScore.Observe(float64(assessment.Score))

	respondJSON(w, http.StatusOK, assessment)
}

func (s *Server) handleAbuseStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.history.AbuseStats(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"stats": stats})
}

func (s *Server) handleSuspicious(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	entries, err := s.history.Suspicious(r.Context(), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"reports": entries})
}

// clientIP extracts the remote address, already rewritten by the RealIP
// middleware when forwarded headers are present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[httpapi] encode response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondServiceError maps service sentinel errors onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, intake.ErrUnknownSession):
		respondError(w, http.StatusNotFound, "session not found")
	case errors.Is(err, intake.ErrInvalidAccess):
		respondError(w, http.StatusNotFound, "invalid access code")
	case errors.Is(err, intake.ErrRateLimited):
		respondError(w, http.StatusTooManyRequests, "too many requests")
	default:
		log.Printf("[httpapi] internal error: %v", err)
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}
