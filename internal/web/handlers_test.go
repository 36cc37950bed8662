package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablescrub/internal/config"
	"tablescrub/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            8080,
			ShutdownTimeout: time.Second,
			RequestTimeout:  time.Minute,
		},
		Upload: config.UploadConfig{
			MaxFileSize:       1 << 20,
			AllowedExtensions: []string{".csv", ".tsv", ".txt"},
		},
		Session: config.SessionConfig{
			TTL:           30 * time.Minute,
			SweepInterval: time.Hour,
			MaxSessions:   10,
			PreviewRows:   100,
		},
		Rate:    config.RateLimitConfig{Enabled: false},
		Logging: config.LoggingConfig{Level: "error", Format: "text"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	store := session.NewStore(cfg.Session.TTL, cfg.Session.SweepInterval, cfg.Session.MaxSessions)
	t.Cleanup(store.Close)
	return NewServer(cfg, store)
}

// uploadFile posts a multipart upload and returns the response recorder.
func uploadFile(t *testing.T, srv *Server, fileName, content string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func doJSON(srv *Server, method, path string, body string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) sessionResponse {
	t.Helper()
	var resp sessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestCreateSession(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := uploadFile(t, srv, "contacts.csv", "Name,City\nAlice, NYC\nAlice,NYC\n, \n")
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeSession(t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, "contacts.csv", resp.FileName)
	assert.Equal(t, ",", resp.Delimiter)
	assert.Equal(t, []string{"Name", "City"}, resp.Headers)
	assert.Equal(t, 3, resp.TotalRows)
	assert.False(t, resp.PreviewTruncated)
	assert.Zero(t, resp.Stats)
}

func TestCreateSessionSemicolon(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := uploadFile(t, srv, "data.txt", "a;b\n1;2\n")
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeSession(t, rec)
	assert.Equal(t, ";", resp.Delimiter)
}

func TestCreateSessionUnsupportedExtension(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := uploadFile(t, srv, "contacts.xlsx", "whatever")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestCreateSessionNoFile(t *testing.T) {
	srv := newTestServer(t, testConfig())

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "no file here"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/sessions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE003", decodeError(t, rec).Code)
}

func TestCreateSessionEmptyFile(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := uploadFile(t, srv, "empty.csv", "   \n\n")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)
}

func TestCreateSessionStoreFull(t *testing.T) {
	cfg := testConfig()
	cfg.Session.MaxSessions = 1
	srv := newTestServer(t, cfg)

	rec := uploadFile(t, srv, "a.csv", "a,b\n1,2\n")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = uploadFile(t, srv, "b.csv", "a,b\n1,2\n")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "SES002", decodeError(t, rec).Code)
}

func TestGetSession(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "a.csv", "a,b\n1,2\n"))

	rec := doJSON(srv, http.MethodGet, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, created.ID, decodeSession(t, rec).ID)
}

func TestGetSessionNotFound(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := doJSON(srv, http.MethodGet, "/api/sessions/does-not-exist", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "SES001", decodeError(t, rec).Code)
}

func TestCleanSession(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "contacts.csv", "Name,City\nAlice, NYC\nAlice,NYC\n, \n"))

	rec := doJSON(srv, http.MethodPost, "/api/sessions/"+created.ID+"/clean",
		`{"removeDuplicates":true,"trimWhitespace":true,"removeEmptyRows":true}`)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeSession(t, rec)
	assert.Equal(t, 1, resp.TotalRows)
	assert.Equal(t, [][]string{{"Alice", "NYC"}}, resp.Preview)
	assert.Equal(t, 1, resp.Stats.DuplicatesRemoved)
	assert.Equal(t, 1, resp.Stats.EmptyRowsRemoved)
}

func TestCleanSessionInvalidBody(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "a.csv", "a,b\n1,2\n"))

	rec := doJSON(srv, http.MethodPost, "/api/sessions/"+created.ID+"/clean", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResetSession(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "contacts.csv", "Name,City\nAlice,NYC\nAlice,NYC\n"))

	rec := doJSON(srv, http.MethodPost, "/api/sessions/"+created.ID+"/clean",
		`{"removeDuplicates":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, 1, decodeSession(t, rec).TotalRows)

	rec = doJSON(srv, http.MethodPost, "/api/sessions/"+created.ID+"/reset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeSession(t, rec)
	assert.Equal(t, 2, resp.TotalRows)
	assert.Zero(t, resp.Stats)
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "contacts.csv", "Name;City\nAlice;NYC\n"))

	rec := doJSON(srv, http.MethodGet, "/api/sessions/"+created.ID+"/export", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "contacts-cleaned.csv")
	// The detected semicolon is reused on export.
	assert.Equal(t, "Name;City\nAlice;NYC", rec.Body.String())
}

func TestExportXLSX(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "contacts.csv", "Name,City\nAlice,NYC\n"))

	rec := doJSON(srv, http.MethodGet, "/api/sessions/"+created.ID+"/export?format=xlsx", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "contacts-cleaned.xlsx")
	assert.NotZero(t, rec.Body.Len())
}

func TestExportUnknownFormat(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "a.csv", "a,b\n1,2\n"))

	rec := doJSON(srv, http.MethodGet, "/api/sessions/"+created.ID+"/export?format=pdf", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)
}

func TestDeleteSession(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "a.csv", "a,b\n1,2\n"))

	rec := doJSON(srv, http.MethodDelete, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(srv, http.MethodGet, "/api/sessions/"+created.ID, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestProfileEndpoint(t *testing.T) {
	srv := newTestServer(t, testConfig())

	created := decodeSession(t, uploadFile(t, srv, "a.csv", "Name,Score\nAlice,1\nBob,3\n"))

	rec := doJSON(srv, http.MethodGet, "/api/sessions/"+created.ID+"/profile", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		SessionID string `json:"session_id"`
		TotalRows int    `json:"total_rows"`
		Columns   []struct {
			Name string `json:"name"`
			Kind string `json:"kind"`
		} `json:"columns"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))

	assert.Equal(t, created.ID, resp.SessionID)
	assert.Equal(t, 2, resp.TotalRows)
	require.Len(t, resp.Columns, 2)
	assert.Equal(t, "text", resp.Columns[0].Kind)
	assert.Equal(t, "numeric", resp.Columns[1].Kind)
}

func TestPreviewTruncation(t *testing.T) {
	cfg := testConfig()
	cfg.Session.PreviewRows = 1
	srv := newTestServer(t, cfg)

	rec := uploadFile(t, srv, "a.csv", "a,b\n1,2\n3,4\n5,6\n")
	require.Equal(t, http.StatusCreated, rec.Code)

	resp := decodeSession(t, rec)
	assert.Equal(t, 3, resp.TotalRows)
	assert.Len(t, resp.Preview, 1)
	assert.True(t, resp.PreviewTruncated)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := doJSON(srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestSecurityHeaders(t *testing.T) {
	srv := newTestServer(t, testConfig())

	rec := doJSON(srv, http.MethodGet, "/healthz", "")
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
}

func TestRateLimiting(t *testing.T) {
	cfg := testConfig()
	cfg.Rate.Enabled = true
	cfg.Rate.RequestsPerMinute = 2
	srv := newTestServer(t, cfg)

	for i := 0; i < 2; i++ {
		rec := doJSON(srv, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := doJSON(srv, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
