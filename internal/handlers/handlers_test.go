package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/epitome/examportal/internal/app"
)

func setupServer(t *testing.T) *httptest.Server {
	cfg := &app.Config{}
	cfg.Server.Port = ":0"
	cfg.Server.CookieName = "exam_session"
	cfg.Server.RequestTimeoutSeconds = 5
	cfg.Admin.Username = "admin"
	cfg.Admin.Password = "s3cret"
	cfg.Database.DSN = ":memory:"
	cfg.Database.MigrationsDir = "../../migrations"
	cfg.Database.OpTimeoutSeconds = 5
	cfg.Sessions.TTLMinutes = 60
	cfg.Ledger.LogsDir = t.TempDir()
	cfg.Credentials.BcryptCost = bcrypt.MinCost

	svc, err := app.New(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })

	mux := http.NewServeMux()
	New(svc, JSONRenderer{}).Register(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

type client struct {
	t      *testing.T
	srv    *httptest.Server
	http   *http.Client
	cookie *http.Cookie
}

func newClient(t *testing.T, srv *httptest.Server) *client {
	return &client{
		t:   t,
		srv: srv,
		http: &http.Client{CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}},
	}
}

func (c *client) do(method, path, contentType, body string) (*http.Response, map[string]interface{}) {
	req, err := http.NewRequest(method, c.srv.URL+path, strings.NewReader(body))
	require.NoError(c.t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	for _, ck := range resp.Cookies() {
		if ck.Name == "exam_session" {
			c.cookie = ck
			if ck.MaxAge < 0 {
				c.cookie = nil
			}
		}
	}

	var decoded map[string]interface{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&decoded))
	}
	return resp, decoded
}

func (c *client) form(path string, values url.Values) (*http.Response, map[string]interface{}) {
	return c.do(http.MethodPost, path, "application/x-www-form-urlencoded", values.Encode())
}

func (c *client) json(method, path, body string) (*http.Response, map[string]interface{}) {
	return c.do(method, path, "application/json", body)
}

func (c *client) get(path string) (*http.Response, map[string]interface{}) {
	return c.do(http.MethodGet, path, "", "")
}

func loginAdmin(t *testing.T, srv *httptest.Server) *client {
	admin := newClient(t, srv)
	resp, _ := admin.form("/admin_login", url.Values{"username": {"admin"}, "password": {"s3cret"}})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/admin", resp.Header.Get("Location"))
	require.NotNil(t, admin.cookie)
	return admin
}

func generate(t *testing.T, admin *client, body string) []interface{} {
	resp, data := admin.json(http.MethodPost, "/generate_credentials", body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return data["credentials"].([]interface{})
}

func TestRootRedirectsToAdminLogin(t *testing.T) {
	srv := setupServer(t)
	resp, _ := newClient(t, srv).get("/")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin_login", resp.Header.Get("Location"))
}

func TestGuardRedirectsPagesAndRejectsAPI(t *testing.T) {
	srv := setupServer(t)
	anon := newClient(t, srv)

	testCases := []struct {
		path     string
		redirect string
	}{
		{"/admin", "/admin_login"},
		{"/user", "/user_login"},
		{"/exam", "/user_login"},
		{"/result", "/user_login"},
	}
	for _, tc := range testCases {
		resp, _ := anon.get(tc.path)
		assert.Equal(t, http.StatusSeeOther, resp.StatusCode, tc.path)
		assert.Equal(t, tc.redirect, resp.Header.Get("Location"), tc.path)
	}

	resp, data := anon.get("/view_results")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/admin_login", data["redirect"])

	resp, data = anon.json(http.MethodPost, "/api/exam/submit", `{"score":1}`)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "/user_login", data["redirect"])

	admin := loginAdmin(t, srv)
	resp, _ = admin.get("/exam")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/user_login", resp.Header.Get("Location"))
}

func TestAdminLogin(t *testing.T) {
	srv := setupServer(t)

	c := newClient(t, srv)
	resp, data := c.form("/admin_login", url.Values{"username": {"admin"}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "admin_login", data["page"])
	assert.Equal(t, "Invalid credentials", data["data"].(map[string]interface{})["Error"])
	assert.Nil(t, c.cookie)

	admin := loginAdmin(t, srv)
	resp, data = admin.get("/admin")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "admin", data["page"])
}

func TestCredentialEndpoints(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)

	resp, data := admin.form("/generate_credentials", url.Values{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	creds := data["credentials"].([]interface{})
	require.Len(t, creds, 1)
	assert.Equal(t, "candidate01", creds[0].(map[string]interface{})["username"])

	creds = generate(t, admin, `{"count":2,"prefix":"cand","password_length":6}`)
	require.Len(t, creds, 2)
	assert.Equal(t, "cand02", creds[0].(map[string]interface{})["username"])
	assert.Len(t, creds[1].(map[string]interface{})["password"], 6)

	resp, data = admin.json(http.MethodPost, "/generate_credentials", `{"count":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "count must be at least 0", data["error"])
	resp, data = admin.json(http.MethodPost, "/generate_credentials", `{"count":1,"prefix":"bad-prefix"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "prefix is invalid", data["error"])
	assert.NotContains(t, data["error"], "GenerateRequest")
	resp, _ = admin.form("/generate_credentials", url.Values{"count": {"many"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = admin.json(http.MethodPost, "/mark_issued", `{"usernames":["cand02"]}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data["success"])

	resp, data = admin.json(http.MethodPost, "/mark_issued", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, false, data["success"])

	resp, data = admin.get("/view_credentials")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	listed := data["credentials"].([]interface{})
	require.Len(t, listed, 3)
	for _, item := range listed {
		cred := item.(map[string]interface{})
		assert.NotContains(t, cred, "password_hash")
		if cred["username"] == "cand02" {
			assert.Equal(t, true, cred["issued"])
			assert.Equal(t, creds[0].(map[string]interface{})["password"], cred["password"])
		}
	}
}

func TestCandidateExamOverHTTP(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	cred := generate(t, admin, `{"count":1,"prefix":"cand","password_length":5}`)[0].(map[string]interface{})

	candidate := newClient(t, srv)
	resp, data := candidate.form("/user_login", url.Values{
		"username":  {"cand01"},
		"password":  {"wrong"},
		"full_name": {"Amina Bello"},
		"subject":   {"biology"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "user_login", data["page"])

	resp, _ = candidate.form("/user_login", url.Values{
		"username":  {"cand01"},
		"password":  {cred["password"].(string)},
		"full_name": {"Amina Bello"},
		"email":     {"amina@example.com"},
		"subject":   {"biology"},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/user", resp.Header.Get("Location"))

	resp, data = candidate.json(http.MethodPost, "/api/exam/submit", `{"score":75,"correct":30,"total":40,"answered":38,"time_taken":600}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "submitting before starting is refused")

	resp, data = candidate.get("/exam")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "exam", data["page"])

	resp, data = candidate.json(http.MethodPost, "/api/exam/submit", `{"score":75,"correct":41,"total":40,"answered":38,"time_taken":600}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, data["error"], "correct must not exceed total")

	resp, data = candidate.json(http.MethodPost, "/api/exam/submit", `{"score":75,"correct":30,"total":40,"answered":38,"time_taken":600}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, data["success"])

	resp, _ = candidate.get("/exam")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/result", resp.Header.Get("Location"))

	resp, data = candidate.json(http.MethodPost, "/api/exam/submit", `{"score":75,"correct":30,"total":40,"answered":38,"time_taken":600}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "/result", data["redirect"])

	resp, data = candidate.get("/api/results/latest")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	result := data["result"].(map[string]interface{})
	assert.Equal(t, "cand01", result["username"])
	assert.Equal(t, "PASS", result["outcome"])
	summary := data["summary"].(map[string]interface{})
	assert.Equal(t, float64(2), summary["skipped"])
	assert.Equal(t, "10m 00s", summary["time_taken"])

	resp, data = candidate.get("/result")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "result", data["page"])

	resp, _ = candidate.get("/view_results")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, data = admin.get("/view_results?limit=10")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data["results"], 1)

	resp, _ = admin.get("/view_results?limit=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, data = admin.get("/api/results/export")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, data["results"], 1)
}

func TestCandidateLoginRejectsBadProfile(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	cred := generate(t, admin, `{"count":1}`)[0].(map[string]interface{})

	c := newClient(t, srv)
	resp, data := c.form("/user_login", url.Values{
		"username": {cred["username"].(string)},
		"password": {cred["password"].(string)},
		"subject":  {"biology"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, data["data"].(map[string]interface{})["Error"], "fullname is required")
	assert.Nil(t, c.cookie)
}

func TestLogout(t *testing.T) {
	srv := setupServer(t)
	admin := loginAdmin(t, srv)
	stale := admin.cookie

	resp, _ := admin.get("/logout")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/admin_login", resp.Header.Get("Location"))
	assert.Nil(t, admin.cookie)

	admin.cookie = stale
	resp, _ = admin.get("/admin")
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode, "old session id no longer works")
}
