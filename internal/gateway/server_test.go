package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/leapstack-labs/partql/internal/docstore"
	"github.com/leapstack-labs/partql/internal/engine"
	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/leapstack-labs/partql/internal/metrics"
	"github.com/leapstack-labs/partql/internal/registry"
	"github.com/leapstack-labs/partql/internal/testutil"
	"github.com/leapstack-labs/partql/internal/unit"
	"github.com/leapstack-labs/partql/pkg/ast"
	"github.com/leapstack-labs/partql/pkg/parser"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeUnits hands out one engine per partition key and records every call.
type fakeUnits struct {
	t     *testing.T
	mu    sync.Mutex
	keys  []string
	units map[string]*httptest.Server
	err   error
	addr  string // when set, returned for every key
}

func (f *fakeUnits) EnsureRunning(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	if f.addr != "" {
		return f.addr, nil
	}
	if srv, ok := f.units[key]; ok {
		return srv.URL, nil
	}
	store := docstore.New(f.t.TempDir())
	srv := httptest.NewServer(engine.NewServer(engine.Config{Store: store}).Handler())
	f.t.Cleanup(srv.Close)
	f.units[key] = srv
	return srv.URL, nil
}

func (f *fakeUnits) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.keys...)
}

type countingRegistry struct {
	Registry
	mu      sync.Mutex
	lookups int
}

func (c *countingRegistry) PartitionKeyPath(ctx context.Context, name string) (string, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	return c.Registry.PartitionKeyPath(ctx, name)
}

type fixture struct {
	srv   *httptest.Server
	units *fakeUnits
	reg   *countingRegistry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg, err := registry.Open(context.Background(), filepath.Join(t.TempDir(), "registry.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close() })

	units := &fakeUnits{t: t, units: map[string]*httptest.Server{}}
	counting := &countingRegistry{Registry: reg}
	gw := NewServer(Config{
		Registry: counting,
		Units:    units,
		Logger:   testutil.NewTestLogger(t),
		Metrics:  metrics.New(),
	})
	srv := httptest.NewServer(gw.Handler())
	t.Cleanup(srv.Close)

	return &fixture{srv: srv, units: units, reg: counting}
}

func (f *fixture) do(t *testing.T, method, path, body string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(method, f.srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(data)
}

func (f *fixture) createPets(t *testing.T) {
	t.Helper()
	resp, body := f.do(t, http.MethodPost, "/containers/", `{"container":"pets","partitionKeyPath":"owner"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
}

func problem(t *testing.T, body string) httpapi.Problem {
	t.Helper()
	p, ok := httpapi.DecodeProblem([]byte(body))
	require.True(t, ok, "not a problem body: %s", body)
	return p
}

func TestEndToEnd(t *testing.T) {
	f := newFixture(t)
	f.createPets(t)

	for _, doc := range []string{
		`{"id":"rex","owner":"bob","age":3}`,
		`{"id":"tom","owner":"bob","age":7}`,
		`{"id":"kit","owner":"amy","age":1}`,
	} {
		resp, body := f.do(t, http.MethodPut, "/containers/pets/documents/", doc)
		require.Equal(t, http.StatusOK, resp.StatusCode, body)
	}

	resp, body := f.do(t, http.MethodPost, "/containers/pets/query", `{"sql":"SELECT id, age FROM pets WHERE owner = 'bob'"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `[{"id":"rex","age":3},{"id":"tom","age":7}]`, body)

	// amy's documents live in a different unit.
	resp, body = f.do(t, http.MethodPost, "/containers/pets/query", `{"sql":"SELECT id FROM pets WHERE owner = 'amy'"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `[{"id":"kit"}]`, body)

	resp, body = f.do(t, http.MethodGet, "/containers/pets/documents/kit?partitionKeyValue=amy", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.JSONEq(t, `{"id":"kit","owner":"amy","age":1}`, body)

	resp, _ = f.do(t, http.MethodGet, "/containers/pets/documents/kit?partitionKeyValue=bob", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Len(t, f.units.units, 2)
}

func TestUnknownContainerBeforeAnyWork(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "query", method: http.MethodPost, path: "/containers/nope/query", body: `{"sql":"SELECT * FROM nope WHERE owner = 'bob'"}`},
		{name: "unparsable query", method: http.MethodPost, path: "/containers/nope/query", body: `{"sql":"DROP everything"}`},
		{name: "malformed body", method: http.MethodPost, path: "/containers/nope/query", body: `{`},
		{name: "put", method: http.MethodPut, path: "/containers/nope/documents/", body: `{"id":"1","owner":"bob"}`},
		{name: "get", method: http.MethodGet, path: "/containers/nope/documents/1?partitionKeyValue=bob"},
		{name: "get without key", method: http.MethodGet, path: "/containers/nope/documents/1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, titleContainerNotFound, problem(t, body).Title)
		})
	}
	assert.Empty(t, f.units.calls())
}

func TestQueryClientErrors(t *testing.T) {
	f := newFixture(t)
	f.createPets(t)

	tests := []struct {
		name  string
		body  string
		title string
	}{
		{name: "malformed body", body: `{"sql":`, title: titleBadRequest},
		{name: "syntax error", body: `{"sql":"SELECT FROM pets"}`, title: "syntax error at offset 7: expected column name or *, found Keyword \"FROM\""},
		{name: "no where", body: `{"sql":"SELECT * FROM pets"}`, title: titleNoPartitionKey},
		{name: "numeric key", body: `{"sql":"SELECT * FROM pets WHERE owner = 1"}`, title: titleNoPartitionKey},
		{name: "other column", body: `{"sql":"SELECT * FROM pets WHERE name = 'bob'"}`, title: titleNoPartitionKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPost, "/containers/pets/query", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, httpapi.ProblemContentType, resp.Header.Get("Content-Type"))
			assert.Equal(t, tt.title, problem(t, body).Title)
		})
	}
	assert.Empty(t, f.units.calls())
}

func TestForwardsOriginalTree(t *testing.T) {
	f := newFixture(t)
	f.createPets(t)

	var gotPath string
	var gotBody []byte
	unitSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/vnd.partql+json")
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, `{"custom":true}`)
	}))
	defer unitSrv.Close()
	f.units.addr = unitSrv.URL

	const sql = "SELECT * FROM pets WHERE age > 2 AND owner = 'bob'"
	resp, body := f.do(t, http.MethodPost, "/containers/pets/query", `{"sql":"`+sql+`"}`)

	assert.Equal(t, http.StatusTeapot, resp.StatusCode)
	assert.Equal(t, "application/vnd.partql+json", resp.Header.Get("Content-Type"))
	assert.Equal(t, `{"custom":true}`, body)

	assert.Equal(t, "/pets/query", gotPath)
	forwarded, err := ast.Decode(gotBody)
	require.NoError(t, err)
	want, err := parser.Parse(sql)
	require.NoError(t, err)
	assert.Equal(t, want, forwarded)
	assert.Equal(t, []string{"bob"}, f.units.calls())
}

func TestProvisioningFailure(t *testing.T) {
	f := newFixture(t)
	f.createPets(t)
	f.units.err = &unit.ProvisioningError{Unit: "partql_engine_1", Op: unit.OpCreate, Err: errors.New("no such image")}

	resp, body := f.do(t, http.MethodPost, "/containers/pets/query", `{"sql":"SELECT * FROM pets WHERE owner = 'bob'"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	p := problem(t, body)
	assert.Equal(t, titleUnitUnavailable, p.Title)
	assert.Contains(t, p.Detail, "no such image")
}

func TestUnitUnreachable(t *testing.T) {
	f := newFixture(t)
	f.createPets(t)

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	f.units.addr = dead.URL

	resp, body := f.do(t, http.MethodGet, "/containers/pets/documents/1?partitionKeyValue=bob", "")
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, titleUnitUnreachable, problem(t, body).Title)
}

func TestPutDocumentErrors(t *testing.T) {
	f := newFixture(t)
	f.createPets(t)

	tests := []struct {
		name  string
		body  string
		title string
	}{
		{name: "not json", body: `{`, title: titleBadRequest},
		{name: "array", body: `[]`, title: titleBadRequest},
		{name: "missing key", body: `{"id":"1"}`, title: titleBadDocument},
		{name: "numeric key", body: `{"id":"1","owner":5}`, title: titleBadDocument},
		{name: "null key", body: `{"id":"1","owner":null}`, title: titleBadDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.do(t, http.MethodPut, "/containers/pets/documents/", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, tt.title, problem(t, body).Title)
		})
	}
	assert.Empty(t, f.units.calls())
}

func TestGetDocumentRequiresKeyValue(t *testing.T) {
	f := newFixture(t)
	f.createPets(t)

	resp, body := f.do(t, http.MethodGet, "/containers/pets/documents/1", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, titleMissingKeyValue, problem(t, body).Title)
	assert.Empty(t, f.units.calls())
}

func TestContainerAdministration(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/containers/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `[]`, body)

	f.createPets(t)

	resp, _ = f.do(t, http.MethodPost, "/containers/", `{"container":"pets","partitionKeyPath":"other"}`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/containers/", `{"container":"bad/name","partitionKeyPath":"k"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/containers/", `{"container":"toys"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/containers/", `{"container":"toys","partitionKeyPath":"owner_id"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/containers/", `not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodGet, "/containers/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list []registry.Container
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "pets", list[0].Name)
	assert.Equal(t, "owner", list[0].PartitionKeyPath)
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	f.do(t, http.MethodPost, "/containers/nope/query", `{"sql":"x"}`)

	resp, body := f.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `partql_gateway_requests_total{code="404",route="/containers/{container}`)
}
