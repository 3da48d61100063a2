package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/issue-tracker/internal/handler"
	"github.com/psds-microservice/issue-tracker/internal/model"
	"github.com/psds-microservice/issue-tracker/internal/repository"
	"github.com/psds-microservice/issue-tracker/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type downPinger struct{}

func (downPinger) Ping(context.Context) error { return errors.New("down") }

func setupTestRouter(t *testing.T) http.Handler {
	t.Helper()
	repo := repository.NewMemoryRepository()
	svc := service.NewIssueService(repo, nil)
	return New(handler.NewIssueHandler(svc, nil), handler.NewHealthHandler(repo, "memory", nil), nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func doForm(t *testing.T, h http.Handler, method, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeMap(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func decodeIssues(t *testing.T, w *httptest.ResponseRecorder) []model.Issue {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got []model.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	return got
}

func create(t *testing.T, h http.Handler, project string, body map[string]any) model.Issue {
	t.Helper()
	w := doJSON(t, h, http.MethodPost, "/api/issues/"+project, body)
	require.Equal(t, http.StatusOK, w.Code)
	var issue model.Issue
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &issue))
	require.NotEmpty(t, issue.ID, w.Body.String())
	return issue
}

func required() map[string]any {
	return map[string]any{"issue_title": "Title", "issue_text": "Text", "created_by": "Joe"}
}

func TestCreate_EveryField(t *testing.T) {
	h := setupTestRouter(t)
	body := required()
	body["assigned_to"] = "Jane"
	body["status_text"] = "In QA"

	w := doJSON(t, h, http.MethodPost, "/api/issues/apitest", body)
	got := decodeMap(t, w)

	assert.Len(t, got["_id"], model.IDLength)
	assert.Equal(t, "Title", got["issue_title"])
	assert.Equal(t, "Jane", got["assigned_to"])
	assert.Equal(t, "In QA", got["status_text"])
	assert.Equal(t, true, got["open"])
	assert.Equal(t, "apitest", got["project"])
	assert.Equal(t, got["created_on"], got["updated_on"])
	assert.NotContains(t, got, "error")
}

func TestCreate_OnlyRequired(t *testing.T) {
	h := setupTestRouter(t)

	got := decodeMap(t, doJSON(t, h, http.MethodPost, "/api/issues/apitest", required()))
	assert.Equal(t, "", got["assigned_to"])
	assert.Equal(t, "", got["status_text"])
	assert.Equal(t, true, got["open"])
}

func TestCreate_IgnoresSystemFields(t *testing.T) {
	h := setupTestRouter(t)
	body := required()
	body["_id"] = "000000000000000000000000"
	body["created_on"] = "1999-01-01T00:00:00.000Z"
	body["open"] = false
	body["project"] = "elsewhere"

	got := decodeMap(t, doJSON(t, h, http.MethodPost, "/api/issues/apitest", body))
	assert.NotEqual(t, "000000000000000000000000", got["_id"])
	assert.NotEqual(t, "1999-01-01T00:00:00.000Z", got["created_on"])
	assert.Equal(t, true, got["open"])
	assert.Equal(t, "apitest", got["project"])
}

func TestCreate_MissingRequired(t *testing.T) {
	h := setupTestRouter(t)
	body := required()
	body["issue_title"] = ""

	got := decodeMap(t, doJSON(t, h, http.MethodPost, "/api/issues/apitest", body))
	assert.Equal(t, map[string]any{"error": "required field(s) missing"}, got)

	assert.Empty(t, decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest", nil)))
}

func TestCreate_Form(t *testing.T) {
	h := setupTestRouter(t)
	form := url.Values{"issue_title": {"a"}, "issue_text": {"b"}, "created_by": {"c"}}

	got := decodeMap(t, doForm(t, h, http.MethodPost, "/api/issues/apitest", form))
	assert.Equal(t, "a", got["issue_title"])
	assert.Len(t, got["_id"], model.IDLength)
}

func TestList(t *testing.T) {
	h := setupTestRouter(t)
	a := create(t, h, "apitest", required())
	withAssignee := required()
	withAssignee["assigned_to"] = "Jane"
	b := create(t, h, "apitest", withAssignee)
	create(t, h, "other", required())

	all := decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest", nil))
	require.Len(t, all, 2)
	assert.Equal(t, a.ID, all[0].ID)
	assert.Equal(t, b.ID, all[1].ID)

	one := decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest?assigned_to=Jane", nil))
	require.Len(t, one, 1)
	assert.Equal(t, b.ID, one[0].ID)

	multi := decodeIssues(t, doJSON(t, h, http.MethodGet,
		"/api/issues/apitest?open=true&created_by=Joe&_id="+a.ID, nil))
	require.Len(t, multi, 1)
	assert.Equal(t, a.ID, multi[0].ID)

	closed := decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest?open=false", nil))
	assert.Empty(t, closed)
}

func TestList_EmptyIsArray(t *testing.T) {
	h := setupTestRouter(t)

	w := doJSON(t, h, http.MethodGet, "/api/issues/nothing-here", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUpdate(t *testing.T) {
	h := setupTestRouter(t)
	issue := create(t, h, "apitest", required())

	t.Run("one field", func(t *testing.T) {
		got := decodeMap(t, doJSON(t, h, http.MethodPut, "/api/issues/apitest",
			map[string]any{"_id": issue.ID, "issue_text": "new text"}))
		assert.Equal(t, map[string]any{"result": "successfully updated", "_id": issue.ID}, got)
	})

	t.Run("multiple fields", func(t *testing.T) {
		got := decodeMap(t, doJSON(t, h, http.MethodPut, "/api/issues/apitest",
			map[string]any{"_id": issue.ID, "issue_title": "new title", "status_text": "done"}))
		assert.Equal(t, "successfully updated", got["result"])

		list := decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest?_id="+issue.ID, nil))
		require.Len(t, list, 1)
		assert.Equal(t, "new title", list[0].IssueTitle)
		assert.Equal(t, "new text", list[0].IssueText)
		assert.Equal(t, "done", list[0].StatusText)
		assert.True(t, list[0].Open)
		assert.False(t, list[0].UpdatedOn.Before(list[0].CreatedOn))
	})

	t.Run("missing id", func(t *testing.T) {
		got := decodeMap(t, doJSON(t, h, http.MethodPut, "/api/issues/apitest",
			map[string]any{"issue_title": "x", "open": true}))
		assert.Equal(t, map[string]any{"error": "missing _id"}, got)
	})

	t.Run("no update fields", func(t *testing.T) {
		before := decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest?_id="+issue.ID, nil))
		got := decodeMap(t, doJSON(t, h, http.MethodPut, "/api/issues/apitest",
			map[string]any{"_id": issue.ID, "issue_title": "", "open": false}))
		assert.Equal(t, map[string]any{"error": "no update field(s) sent", "_id": issue.ID}, got)

		after := decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest?_id="+issue.ID, nil))
		require.Len(t, after, 1)
		assert.True(t, before[0].UpdatedOn.Equal(after[0].UpdatedOn))
	})

	t.Run("invalid id", func(t *testing.T) {
		got := decodeMap(t, doJSON(t, h, http.MethodPut, "/api/issues/apitest",
			map[string]any{"_id": "1234", "issue_title": "x"}))
		assert.Equal(t, map[string]any{"error": "could not update", "_id": "1234"}, got)
	})

	t.Run("unknown id", func(t *testing.T) {
		id := repository.NewID()
		got := decodeMap(t, doJSON(t, h, http.MethodPut, "/api/issues/apitest",
			map[string]any{"_id": id, "issue_title": "x"}))
		assert.Equal(t, map[string]any{"error": "could not update", "_id": id}, got)
	})

	t.Run("open closes", func(t *testing.T) {
		got := decodeMap(t, doForm(t, h, http.MethodPut, "/api/issues/apitest",
			url.Values{"_id": {issue.ID}, "open": {"true"}}))
		assert.Equal(t, "successfully updated", got["result"])

		list := decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest?open=false", nil))
		require.Len(t, list, 1)
		assert.Equal(t, issue.ID, list[0].ID)
	})
}

func TestDelete(t *testing.T) {
	h := setupTestRouter(t)
	issue := create(t, h, "apitest", required())

	got := decodeMap(t, doJSON(t, h, http.MethodDelete, "/api/issues/apitest", map[string]any{}))
	assert.Equal(t, map[string]any{"error": "missing _id"}, got)

	got = decodeMap(t, doJSON(t, h, http.MethodDelete, "/api/issues/apitest", map[string]any{"_id": "bad"}))
	assert.Equal(t, map[string]any{"error": "could not delete", "_id": "bad"}, got)

	unknown := repository.NewID()
	got = decodeMap(t, doJSON(t, h, http.MethodDelete, "/api/issues/apitest", map[string]any{"_id": unknown}))
	assert.Equal(t, map[string]any{"error": "could not delete", "_id": unknown}, got)

	got = decodeMap(t, doForm(t, h, http.MethodDelete, "/api/issues/apitest", url.Values{"_id": {issue.ID}}))
	assert.Equal(t, map[string]any{"result": "successfully deleted", "_id": issue.ID}, got)

	assert.Empty(t, decodeIssues(t, doJSON(t, h, http.MethodGet, "/api/issues/apitest", nil)))

	got = decodeMap(t, doJSON(t, h, http.MethodDelete, "/api/issues/apitest", map[string]any{"_id": issue.ID}))
	assert.Equal(t, map[string]any{"error": "could not delete", "_id": issue.ID}, got)
}

func TestHealthAndReady(t *testing.T) {
	h := setupTestRouter(t)

	w := doJSON(t, h, http.MethodGet, PathHealth, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)

	w = doJSON(t, h, http.MethodGet, PathReady, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"storage":"memory"`)

	svc := service.NewIssueService(repository.NewMemoryRepository(), nil)
	down := New(handler.NewIssueHandler(svc, nil), handler.NewHealthHandler(downPinger{}, "postgres", nil), nil)
	w = doJSON(t, down, http.MethodGet, PathReady, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSwaggerSpec(t *testing.T) {
	h := setupTestRouter(t)

	w := doJSON(t, h, http.MethodGet, PathSwagger+"/openapi.json", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/api/issues/{project}")
}
