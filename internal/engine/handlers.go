package engine

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/partql/internal/docstore"
	"github.com/leapstack-labs/partql/internal/httpapi"
	"github.com/leapstack-labs/partql/pkg/ast"
	"github.com/leapstack-labs/partql/pkg/executor"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleQuery evaluates a wire-format tree against every document of the
// container.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	container := chi.URLParam(r, "container")

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		httpapi.WriteProblem(w, http.StatusBadRequest, "Unreadable request body", err.Error())
		return
	}

	node, err := ast.Decode(body)
	if err != nil {
		var unsupported *ast.UnsupportedNodeError
		if errors.As(err, &unsupported) || errors.Is(err, ast.ErrVersionMismatch) {
			s.logger.Error("query tree rejected", "container", container, "error", err)
			httpapi.WriteProblem(w, http.StatusInternalServerError, "Unsupported query tree", err.Error())
			return
		}
		httpapi.WriteProblem(w, http.StatusBadRequest, "Malformed query tree", err.Error())
		return
	}

	docs, err := s.store.List(r.Context(), container)
	if err != nil {
		s.storeError(w, container, err)
		return
	}

	result, err := executor.Filter(docs, node)
	if err != nil {
		var fieldErr *executor.FieldError
		if errors.As(err, &fieldErr) {
			httpapi.WriteProblem(w, http.StatusUnprocessableEntity, "Document does not match query types", err.Error())
			return
		}
		s.logger.Error("query evaluation failed", "container", container, "error", err)
		httpapi.WriteProblem(w, http.StatusInternalServerError, "Unsupported query tree", err.Error())
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	container := chi.URLParam(r, "container")

	var doc executor.Document
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&doc); err != nil || doc == nil {
		detail := "document must be a JSON object"
		if err != nil {
			detail = err.Error()
		}
		httpapi.WriteProblem(w, http.StatusBadRequest, "Malformed document", detail)
		return
	}

	id, err := s.store.Upsert(r.Context(), container, doc)
	if err != nil {
		s.storeError(w, container, err)
		return
	}

	s.logger.Debug("document stored", "container", container, "id", id)
	httpapi.WriteJSON(w, http.StatusOK, doc)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	container := chi.URLParam(r, "container")
	id := chi.URLParam(r, "documentId")

	data, err := s.store.Get(r.Context(), container, id)
	if err != nil {
		s.storeError(w, container, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) storeError(w http.ResponseWriter, container string, err error) {
	switch {
	case errors.Is(err, docstore.ErrNotFound):
		httpapi.WriteProblem(w, http.StatusNotFound, "Document not found", err.Error())
	case errors.Is(err, docstore.ErrInvalidID), errors.Is(err, docstore.ErrInvalidContainer):
		httpapi.WriteProblem(w, http.StatusBadRequest, "Invalid document reference", err.Error())
	default:
		s.logger.Error("document store failed", "container", container, "error", err)
		httpapi.WriteProblem(w, http.StatusInternalServerError, "Document store failure", err.Error())
	}
}
