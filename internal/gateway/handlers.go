package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/leapstack-labs/partql/internal/registry"
	"github.com/leapstack-labs/partql/internal/routing"
	"github.com/leapstack-labs/partql/pkg/parser"
)

// Problem titles.
const (
	titleContainerNotFound = "Container not found"
	titleNoPartitionKey    = "WHERE clause must contain partition key"
	titleMissingKeyValue   = "partitionKeyValue query parameter is required"
	titleBadDocument       = "Document must carry a string partition key"
	titleBadRequest        = "Malformed request"
	titleUnitUnavailable   = "Compute unit unavailable"
	titleUnitUnreachable   = "Compute unit unreachable"
)

// CreateContainerRequest is the body of POST /containers/.
type CreateContainerRequest struct {
	Container        string `json:"container"`
	PartitionKeyPath string `json:"partitionKeyPath"`
}

// QueryRequest is the body of POST /containers/{container}/query.
type QueryRequest struct {
	SQL string `json:"sql"`
}

type routeKey struct{}

// route is the resolved container of a request.
type route struct {
	container string
	column    string // partition-key column
}

func routeFrom(ctx context.Context) route {
	r, _ := ctx.Value(routeKey{}).(route)
	return r
}

// resolveContainer rejects unknown containers before any other work.
func (s *Server) resolveContainer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "container")

		column, err := s.registry.PartitionKeyPath(r.Context(), name)
		if errors.Is(err, registry.ErrNotFound) {
			httpapi.WriteProblem(w, http.StatusNotFound, titleContainerNotFound, routing.UnknownContainer(name).Error())
			return
		}
		if err != nil {
			s.logger.Error("registry lookup failed", "container", name, "error", err)
			httpapi.WriteProblem(w, http.StatusInternalServerError, "Registry failure", err.Error())
			return
		}

		ctx := context.WithValue(r.Context(), routeKey{}, route{container: name, column: column})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	list, err := s.registry.List(r.Context())
	if err != nil {
		s.logger.Error("registry list failed", "error", err)
		httpapi.WriteProblem(w, http.StatusInternalServerError, "Registry failure", err.Error())
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		httpapi.WriteProblem(w, http.StatusBadRequest, titleBadRequest, err.Error())
		return
	}

	c, err := s.registry.Create(r.Context(), registry.Container{
		Name:             req.Container,
		PartitionKeyPath: req.PartitionKeyPath,
	})
	switch {
	case errors.Is(err, registry.ErrInvalidName), errors.Is(err, registry.ErrInvalidPartitionKey):
		httpapi.WriteProblem(w, http.StatusBadRequest, "Invalid container", err.Error())
		return
	case errors.Is(err, registry.ErrExists):
		httpapi.WriteProblem(w, http.StatusConflict, "Container already exists", err.Error())
		return
	case err != nil:
		s.logger.Error("registry create failed", "container", req.Container, "error", err)
		httpapi.WriteProblem(w, http.StatusInternalServerError, "Registry failure", err.Error())
		return
	}

	s.logger.Info("container created", "container", c.Name, "partition_key", c.PartitionKeyPath)
	httpapi.WriteJSON(w, http.StatusCreated, c)
}

// handleQuery parses the query, routes it by its partition key and forwards
// the parsed tree, partition predicate included, to the owning unit.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	rt := routeFrom(r.Context())

	var req QueryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req); err != nil {
		httpapi.WriteProblem(w, http.StatusBadRequest, titleBadRequest, err.Error())
		return
	}

	q, err := parser.Parse(req.SQL)
	if err != nil {
		httpapi.WriteProblem(w, http.StatusBadRequest, err.Error(), req.SQL)
		return
	}

	key, found, err := routing.ExtractPartitionKey(q, rt.column)
	if err != nil || !found {
		httpapi.WriteProblem(w, http.StatusBadRequest, titleNoPartitionKey,
			routing.NoPartitionKey(rt.container, rt.column).Error())
		return
	}

	body, err := json.Marshal(q)
	if err != nil {
		httpapi.WriteProblem(w, http.StatusInternalServerError, "Cannot encode query", err.Error())
		return
	}
	s.relay(w, r, key, http.MethodPost, "/"+url.PathEscape(rt.container)+"/query", body)
}

func (s *Server) handlePutDocument(w http.ResponseWriter, r *http.Request) {
	rt := routeFrom(r.Context())

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		httpapi.WriteProblem(w, http.StatusBadRequest, titleBadRequest, err.Error())
		return
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(body, &doc); err != nil || doc == nil {
		httpapi.WriteProblem(w, http.StatusBadRequest, titleBadRequest, "document must be a JSON object")
		return
	}

	// A JSON null leaves the pointer nil.
	var key *string
	raw, ok := doc[rt.column]
	if !ok || json.Unmarshal(raw, &key) != nil || key == nil {
		httpapi.WriteProblem(w, http.StatusBadRequest, titleBadDocument,
			fmt.Sprintf("field %q must be present and a string", rt.column))
		return
	}

	s.relay(w, r, *key, http.MethodPut, "/"+url.PathEscape(rt.container)+"/", body)
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	rt := routeFrom(r.Context())
	id := chi.URLParam(r, "id")

	if !r.URL.Query().Has("partitionKeyValue") {
		httpapi.WriteProblem(w, http.StatusBadRequest, titleMissingKeyValue, "")
		return
	}
	key := r.URL.Query().Get("partitionKeyValue")

	s.relay(w, r, key, http.MethodGet, "/"+url.PathEscape(rt.container)+"/"+url.PathEscape(id), nil)
}

// relay makes sure the unit for key runs and replays its answer to path.
func (s *Server) relay(w http.ResponseWriter, r *http.Request, key, method, path string, body []byte) {
	rt := routeFrom(r.Context())

	addr, err := s.units.EnsureRunning(r.Context(), key)
	if err != nil {
		s.logger.Error("unit provisioning failed", "container", rt.container, "error", err)
		httpapi.WriteProblem(w, http.StatusServiceUnavailable, titleUnitUnavailable, err.Error())
		return
	}

	res, err := s.fwd.forward(r.Context(), method, addr+path, body)
	if err != nil {
		s.logger.Warn("forward failed", "container", rt.container, "unit", addr, "error", err)
		httpapi.WriteProblem(w, http.StatusBadGateway, titleUnitUnreachable, err.Error())
		return
	}
	res.write(w)
}
