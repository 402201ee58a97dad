package handlers

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/models"
	"github.com/epitome/examportal/internal/session"
)

const maxBodyBytes = 1 << 20

type generateRequest struct {
	Count          *int   `json:"count"`
	Prefix         string `json:"prefix"`
	PasswordLength int    `json:"password_length"`
}

func isJSON(r *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mediaType == "application/json"
}

func parseGenerateRequest(r *http.Request) (generateRequest, error) {
	var req generateRequest
	if isJSON(r) {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return req, err
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		if v := r.PostFormValue("count"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, err
			}
			req.Count = &n
		}
		req.Prefix = r.PostFormValue("prefix")
		if v := r.PostFormValue("password_length"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return req, err
			}
			req.PasswordLength = n
		}
	}

	if req.Count == nil {
		one := 1
		req.Count = &one
	}
	return req, nil
}

func (h *Handler) HandleGenerateCredentials(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	req, err := parseGenerateRequest(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	created, err := h.service.GenerateCredentials(r.Context(), *req.Count, req.Prefix, req.PasswordLength)
	if err != nil {
		if len(created) > 0 {
			logger.Error.Printf("Generated %d credentials before failing: %v", len(created), err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"error":       "Generation stopped early, please retry",
				"credentials": created,
			})
			return
		}
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credentials": created,
	})
}

func (h *Handler) HandleViewCredentials(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	candidates, err := h.service.ListCredentials(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credentials": candidates,
	})
}

func (h *Handler) HandleMarkIssued(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var req struct {
		Usernames []string `json:"usernames"`
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]bool{"success": false})
		return
	}

	ok := h.service.MarkIssued(r.Context(), req.Usernames)
	status := http.StatusOK
	if !ok {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]bool{"success": ok})
}

func (h *Handler) HandleViewResults(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid limit"})
			return
		}
		limit = n
	}

	results, err := h.service.ListResults(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

func (h *Handler) HandleExportResults(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	results, err := h.service.ExportResults()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": results,
	})
}

func (h *Handler) HandleStartExam(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	if err := h.service.StartExam(r.Context(), sess); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"started": true,
	})
}

func (h *Handler) HandleSubmitExam(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	var sub models.Submission
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
		return
	}

	result, err := h.service.SubmitExam(r.Context(), sess, sub)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"id":       result.ID,
		"redirect": "/result",
	})
}

func (h *Handler) HandleLatestResult(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	result, err := h.service.LatestResult(r.Context(), sess)
	if err != nil {
		writeError(w, err)
		return
	}

	body := map[string]interface{}{"result": result}
	if result != nil {
		body["summary"] = h.service.Summarize(result)
	}
	writeJSON(w, http.StatusOK, body)
}
