package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientRequests(t *testing.T) {
	type seen struct {
		method, path, query, body string
	}
	var got seen

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = seen{r.Method, r.URL.Path, r.URL.RawQuery, string(body)}

		switch r.URL.Path {
		case "/containers/":
			if r.Method == http.MethodPost {
				httpapi.WriteJSON(w, http.StatusCreated, map[string]string{"name": "pets", "partitionKeyPath": "owner"})
				return
			}
			httpapi.WriteJSON(w, http.StatusOK, []map[string]string{{"name": "pets", "partitionKeyPath": "owner"}})
		case "/containers/pets/query":
			_, _ = io.WriteString(w, `[{"id":"rex"}]`)
		case "/containers/pets/documents/":
			_, _ = w.Write(body)
		default:
			_, _ = io.WriteString(w, `{"id":"rex"}`)
		}
	}))
	defer srv.Close()

	c := New(srv.URL+"/", time.Second)
	ctx := context.Background()

	created, err := c.CreateContainer(ctx, "pets", "owner")
	require.NoError(t, err)
	assert.Equal(t, "owner", created.PartitionKeyPath)
	assert.JSONEq(t, `{"container":"pets","partitionKeyPath":"owner"}`, got.body)

	list, err := c.ListContainers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, http.MethodGet, got.method)

	docs, err := c.Query(ctx, "pets", "SELECT id FROM pets WHERE owner = 'bob'")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.JSONEq(t, `"rex"`, string(docs[0]["id"]))
	assert.JSONEq(t, `{"sql":"SELECT id FROM pets WHERE owner = 'bob'"}`, got.body)

	stored, err := c.PutDocument(ctx, "pets", json.RawMessage(`{"id":"rex","owner":"bob"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"rex","owner":"bob"}`, string(stored))
	assert.Equal(t, http.MethodPut, got.method)

	doc, err := c.GetDocument(ctx, "pets", "rex", "bob smith")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"rex"}`, string(doc))
	assert.Equal(t, "/containers/pets/documents/rex", got.path)
	assert.Equal(t, "partitionKeyValue=bob+smith", got.query)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/containers/" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		httpapi.WriteProblem(w, http.StatusNotFound, "Container not found", `container "nope" not found`)
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)

	_, err := c.Query(context.Background(), "nope", "SELECT * FROM nope")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Container not found", apiErr.Problem.Title)
	assert.Equal(t, `404 Container not found: container "nope" not found`, err.Error())

	_, err = c.ListContainers(context.Background())
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "500 boom", err.Error())
}
