package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/access"
	"github.com/epitome/examportal/internal/app"
	"github.com/epitome/examportal/internal/credentials"
	"github.com/epitome/examportal/internal/ledger"
	"github.com/epitome/examportal/internal/metrics"
	"github.com/epitome/examportal/internal/session"
	"github.com/epitome/examportal/internal/store"
)

type sessionHandler func(w http.ResponseWriter, r *http.Request, sess *session.Session)

type Handler struct {
	service  *app.Service
	renderer Renderer
}

func New(service *app.Service, renderer Renderer) *Handler {
	return &Handler{service: service, renderer: renderer}
}

func (h *Handler) Register(mux *http.ServeMux) {
	route := func(pattern, path string, handler http.HandlerFunc) {
		mux.Handle(pattern, h.instrument(path, handler))
	}

	route("GET /{$}", "/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, access.AdminLoginPath, http.StatusSeeOther)
	})
	route("GET /admin_login", "/admin_login", h.withSession(h.HandleAdminLoginPage))
	route("POST /admin_login", "/admin_login", h.withSession(h.HandleAdminLogin))
	route("GET /user_login", "/user_login", h.withSession(h.HandleUserLoginPage))
	route("POST /user_login", "/user_login", h.withSession(h.HandleUserLogin))
	route("GET /logout", "/logout", h.withSession(h.HandleLogout))

	route("GET /admin", "/admin", h.page(access.RoleAdmin, h.HandleAdminPage))
	route("GET /user", "/user", h.page(access.RoleCandidate, h.HandleUserPage))
	route("GET /exam", "/exam", h.page(access.RoleCandidate, h.HandleExamPage))
	route("GET /result", "/result", h.page(access.RoleCandidate, h.HandleResultPage))

	route("POST /generate_credentials", "/generate_credentials", h.api(access.RoleAdmin, h.HandleGenerateCredentials))
	route("GET /view_credentials", "/view_credentials", h.api(access.RoleAdmin, h.HandleViewCredentials))
	route("POST /mark_issued", "/mark_issued", h.api(access.RoleAdmin, h.HandleMarkIssued))
	route("GET /view_results", "/view_results", h.api(access.RoleAdmin, h.HandleViewResults))
	route("GET /api/results/export", "/api/results/export", h.api(access.RoleAdmin, h.HandleExportResults))

	route("POST /api/exam/start", "/api/exam/start", h.api(access.RoleCandidate, h.HandleStartExam))
	route("POST /api/exam/submit", "/api/exam/submit", h.api(access.RoleCandidate, h.HandleSubmitExam))
	route("GET /api/results/latest", "/api/results/latest", h.api(access.RoleCandidate, h.HandleLatestResult))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// instrument bounds the request context and records the request duration.
func (h *Handler) instrument(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		if timeout := h.service.Config.RequestTimeout(); timeout > 0 {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			r = r.WithContext(ctx)
		}

		next.ServeHTTP(rec, r)

		metrics.APIRequestDuration.WithLabelValues(
			path,
			r.Method,
			strconv.Itoa(rec.status),
		).Observe(time.Since(start).Seconds())
	})
}

func (h *Handler) withSession(next sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var id string
		if c, err := r.Cookie(h.service.Config.Server.CookieName); err == nil {
			id = c.Value
		}

		sess, err := h.service.LoadSession(r.Context(), id)
		if err != nil {
			logger.Error.Printf("Failed to load session: %v", err)
			http.Error(w, "Service unavailable, please retry", http.StatusServiceUnavailable)
			return
		}
		next(w, r, sess)
	}
}

// page sends callers without the role to the matching login page.
func (h *Handler) page(role access.Role, next sessionHandler) http.HandlerFunc {
	return h.withSession(func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if d := access.Authorize(sess, role); !d.Allowed {
			http.Redirect(w, r, d.Redirect, http.StatusSeeOther)
			return
		}
		next(w, r, sess)
	})
}

// api answers callers without the role with 401 and the login to use.
func (h *Handler) api(role access.Role, next sessionHandler) http.HandlerFunc {
	return h.withSession(func(w http.ResponseWriter, r *http.Request, sess *session.Session) {
		if d := access.Authorize(sess, role); !d.Allowed {
			writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
				"error":    "unauthorized",
				"redirect": d.Redirect,
			})
			return
		}
		next(w, r, sess)
	})
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Config.Server.CookieName,
		Value:    sess.ID,
		Path:     "/",
		MaxAge:   int(h.service.Config.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   h.service.Config.Server.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.service.Config.Server.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.service.Config.Server.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeError maps domain errors onto status codes. Internal details are only
// logged.
func writeError(w http.ResponseWriter, err error) {
	var verr *ledger.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": verr.Reason})
	case errors.Is(err, credentials.ErrInvalidRequest):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ledger.Describe(err)})
	case errors.Is(err, app.ErrInvalidLogin):
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
	case errors.Is(err, session.ErrAlreadySubmitted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Exam already submitted", "redirect": "/result"})
	case errors.Is(err, session.ErrExamNotStarted):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Exam not started", "redirect": "/exam"})
	case errors.Is(err, store.ErrDuplicate):
		writeJSON(w, http.StatusConflict, map[string]string{"error": "Record already exists"})
	case errors.Is(err, ledger.ErrPersistence):
		logger.Error.Printf("Persistence failure: %v", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "Could not save, please retry"})
	default:
		logger.Error.Printf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Internal server error"})
	}
}
