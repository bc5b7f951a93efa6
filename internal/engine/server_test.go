package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/leapstack-labs/partql/internal/docstore"
	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/leapstack-labs/partql/internal/testutil"
	"github.com/leapstack-labs/partql/pkg/executor"
	"github.com/leapstack-labs/partql/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*httptest.Server, *docstore.Store) {
	t.Helper()
	store := docstore.New(t.TempDir())
	srv := httptest.NewServer(NewServer(Config{Store: store, Logger: testutil.NewTestLogger(t)}).Handler())
	t.Cleanup(srv.Close)
	return srv, store
}

func do(t *testing.T, method, url, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.String()
}

func wireQuery(t *testing.T, sql string) string {
	t.Helper()
	q, err := parser.Parse(sql)
	require.NoError(t, err)
	data, err := json.Marshal(q)
	require.NoError(t, err)
	return string(data)
}

func TestPutGetQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, doc := range []string{
		`{"id":"rex","owner":"bob","age":3}`,
		`{"id":"tom","owner":"bob","age":7}`,
		`{"id":"kit","owner":"amy","age":1}`,
	} {
		resp, _ := do(t, http.MethodPut, srv.URL+"/pets/", doc)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := do(t, http.MethodGet, srv.URL+"/pets/rex", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"id":"rex","owner":"bob","age":3}`, body)

	resp, body = do(t, http.MethodPost, srv.URL+"/pets/query", wireQuery(t, "SELECT id FROM pets WHERE owner = 'bob' AND age > 5"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[{"id":"tom"}]`, body)
}

func TestQueryEmptyContainer(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodPost, srv.URL+"/pets/query", wireQuery(t, "SELECT * FROM pets WHERE owner = 'bob'"))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)
}

func TestQueryErrors(t *testing.T) {
	srv, store := newTestServer(t)
	_, err := store.Upsert(context.Background(), "pets", executor.Document{
		"id":    json.RawMessage(`"rex"`),
		"owner": json.RawMessage(`"bob"`),
	})
	require.NoError(t, err)

	tests := []struct {
		name   string
		body   string
		status int
	}{
		{name: "not json", body: `{`, status: http.StatusBadRequest},
		{name: "unknown node", body: `{"$type":"insert"}`, status: http.StatusInternalServerError},
		{
			name:   "version mismatch",
			body:   `{"$type":"query","version":99,"select":{"$type":"select","columns":[],"from":{"$type":"from","table":"t"}}}`,
			status: http.StatusInternalServerError,
		},
		{name: "missing field", body: wireQuery(t, "SELECT * FROM pets WHERE age = 1"), status: http.StatusUnprocessableEntity},
		{name: "wrong field type", body: wireQuery(t, "SELECT * FROM pets WHERE owner = 1"), status: http.StatusUnprocessableEntity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, http.MethodPost, srv.URL+"/pets/query", tt.body)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, httpapi.ProblemContentType, resp.Header.Get("Content-Type"))

			p, ok := httpapi.DecodeProblem([]byte(body))
			require.True(t, ok, body)
			assert.Equal(t, tt.status, p.Status)
		})
	}
}

func TestPutErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `{"id":`},
		{name: "array", body: `[1,2]`},
		{name: "null", body: `null`},
		{name: "missing id", body: `{"owner":"bob"}`},
		{name: "bad id", body: `{"id":"../x"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := do(t, http.MethodPut, srv.URL+"/pets/", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestGetMissingDocument(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/pets/nope", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	p, ok := httpapi.DecodeProblem([]byte(body))
	require.True(t, ok)
	assert.Equal(t, "Document not found", p.Title)
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, body := do(t, http.MethodGet, srv.URL+"/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, body)
}

type failingStore struct{ DocumentStore }

func (failingStore) List(context.Context, string) ([]executor.Document, error) {
	return nil, errors.New("disk gone")
}

func TestStoreFailureIsServerError(t *testing.T) {
	logger, logs := testutil.NewCaptureLogger()
	srv := httptest.NewServer(NewServer(Config{Store: failingStore{}, Logger: logger}).Handler())
	defer srv.Close()

	resp, _ := do(t, http.MethodPost, srv.URL+"/pets/query", wireQuery(t, "SELECT * FROM pets"))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, logs.String(), "disk gone")
}
