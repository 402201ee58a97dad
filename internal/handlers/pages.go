package handlers

import (
	"errors"
	"net/http"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/access"
	"github.com/epitome/examportal/internal/app"
	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/session"
)

const invalidCredentials = "Invalid credentials"

func (h *Handler) HandleAdminLoginPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	h.renderer.Render(w, http.StatusOK, "admin_login", map[string]interface{}{})
}

func (h *Handler) HandleAdminLogin(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, http.StatusBadRequest, "admin_login", map[string]interface{}{"Error": "Invalid form"})
		return
	}

	next, err := h.service.LoginAdmin(r.Context(), sess, r.PostFormValue("username"), r.PostFormValue("password"))
	if errors.Is(err, app.ErrInvalidLogin) {
		h.renderer.Render(w, http.StatusUnauthorized, "admin_login", map[string]interface{}{"Error": invalidCredentials})
		return
	}
	if err != nil {
		logger.Error.Printf("Admin login failed: %v", err)
		http.Error(w, "Service unavailable, please retry", http.StatusServiceUnavailable)
		return
	}

	h.setSessionCookie(w, next)
	http.Redirect(w, r, "/admin", http.StatusSeeOther)
}

func (h *Handler) HandleUserLoginPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	h.renderer.Render(w, http.StatusOK, "user_login", map[string]interface{}{})
}

func (h *Handler) HandleUserLogin(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := r.ParseForm(); err != nil {
		h.renderer.Render(w, http.StatusBadRequest, "user_login", map[string]interface{}{"Error": "Invalid form"})
		return
	}

	profile := models.Profile{
		FullName: r.PostFormValue("full_name"),
		Email:    r.PostFormValue("email"),
		Gender:   r.PostFormValue("gender"),
		Subject:  r.PostFormValue("subject"),
	}
	next, err := h.service.LoginCandidate(r.Context(), sess, r.PostFormValue("username"), r.PostFormValue("password"), profile)
	switch {
	case errors.Is(err, app.ErrInvalidLogin):
		h.renderer.Render(w, http.StatusUnauthorized, "user_login", map[string]interface{}{"Error": invalidCredentials})
		return
	case errors.Is(err, app.ErrInvalidProfile):
		h.renderer.Render(w, http.StatusBadRequest, "user_login", map[string]interface{}{"Error": err.Error()})
		return
	case err != nil:
		logger.Error.Printf("Candidate login failed: %v", err)
		http.Error(w, "Service unavailable, please retry", http.StatusServiceUnavailable)
		return
	}

	h.setSessionCookie(w, next)
	http.Redirect(w, r, "/user", http.StatusSeeOther)
}

func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := h.service.Logout(r.Context(), sess); err != nil {
		logger.Error.Printf("Failed to drop session on logout: %v", err)
	}
	h.clearSessionCookie(w)
	http.Redirect(w, r, access.AdminLoginPath, http.StatusSeeOther)
}

func (h *Handler) HandleAdminPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	h.renderer.Render(w, http.StatusOK, "admin", map[string]interface{}{
		"Username": sess.Username,
	})
}

func (h *Handler) HandleUserPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	h.renderer.Render(w, http.StatusOK, "user", map[string]interface{}{
		"Username":  sess.Username,
		"Profile":   sess.Profile,
		"State":     sess.State(),
		"Submitted": sess.ExamSubmitted,
	})
}

// HandleExamPage starts the exam. A finished attempt goes to the result view.
func (h *Handler) HandleExamPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	err := h.service.StartExam(r.Context(), sess)
	if errors.Is(err, session.ErrAlreadySubmitted) {
		http.Redirect(w, r, "/result", http.StatusSeeOther)
		return
	}
	if err != nil {
		logger.Error.Printf("Failed to start exam for %s: %v", sess.Username, err)
		http.Error(w, "Service unavailable, please retry", http.StatusServiceUnavailable)
		return
	}

	h.renderer.Render(w, http.StatusOK, "exam", map[string]interface{}{
		"Username": sess.Username,
		"Profile":  sess.Profile,
	})
}

func (h *Handler) HandleResultPage(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	result, err := h.service.LatestResult(r.Context(), sess)
	if err != nil {
		logger.Error.Printf("Failed to load result for %s: %v", sess.Username, err)
		http.Error(w, "Service unavailable, please retry", http.StatusServiceUnavailable)
		return
	}

	data := map[string]interface{}{
		"Username": sess.Username,
		"Profile":  sess.Profile,
		"Result":   result,
	}
	if result != nil {
		data["Summary"] = h.service.Summarize(result)
	}
	h.renderer.Render(w, http.StatusOK, "result", data)
}
