package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikeboe/osint-helper/pkg/database"
)

func newTestRouter(s *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(s, nil, nil, nil, "test").RegisterRoutes(r)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s, _ := newTestService(&fakeRunner{}, nil)
	w := do(newTestRouter(s), http.MethodGet, "/api/health", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"status": "healthy", "service": "osint-helper", "version": "test"}, body)
}

func TestCheckEndpoint(t *testing.T) {
	s, _ := newTestService(&fakeRunner{answer: "Known fraud case."}, nil)
	r := newTestRouter(s)

	w := do(r, http.MethodPost, "/api/check", `{"location":"Berlin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "provide at least one of")

	w = do(r, http.MethodPost, "/api/check", `{"name":"Jane Doe"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res CheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, RiskHigh, res.RiskLevel)
}

func TestInvestigationEndpoints(t *testing.T) {
	s, _ := newTestService(&fakeRunner{answer: "done"}, nil)
	r := newTestRouter(s)

	w := do(r, http.MethodPost, "/api/investigations", `{"subject":"Jane Doe","kind":"lookup"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created database.Investigation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	s.Wait()

	w = do(r, http.MethodGet, "/api/investigations/"+created.ID.String(), "")
	require.Equal(t, http.StatusOK, w.Code)
	var got database.Investigation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, database.StatusCompleted, got.Status)

	w = do(r, http.MethodGet, "/api/investigations/"+created.ID.String()+"/logs", "")
	require.Equal(t, http.StatusOK, w.Code)
	var logs []database.LogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &logs))
	assert.NotEmpty(t, logs)

	w = do(r, http.MethodGet, "/api/investigations", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []database.Investigation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Len(t, list, 1)
}

func TestInvestigationErrors(t *testing.T) {
	s, _ := newTestService(&fakeRunner{}, nil)
	r := newTestRouter(s)

	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/investigations", `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/api/investigations", `{"subject":"x","kind":"nope"}`).Code)
	assert.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/api/investigations/not-a-uuid", "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/api/investigations/00000000-0000-0000-0000-000000000001", "").Code)
}

func TestEmptyListIsArray(t *testing.T) {
	s, _ := newTestService(&fakeRunner{}, nil)
	w := do(newTestRouter(s), http.MethodGet, "/api/investigations", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestChatRoutesWithoutChat(t *testing.T) {
	s, _ := newTestService(&fakeRunner{}, nil)
	w := do(newTestRouter(s), http.MethodGet, "/api/chat/conversations", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
