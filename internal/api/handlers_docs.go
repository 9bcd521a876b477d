package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/docgraph/internal/pathstore"
	"github.com/dgallion1/docgraph/internal/store"
	"github.com/go-chi/chi/v5"
)

// handleListDocuments lists stored documents, newest first.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 1000)
	}

	docs, err := s.deps.Store.List(r.Context(), limit)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) handleDocumentTriples(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	triples, err := s.deps.Store.Triples(r.Context(), docID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "triples": triples})
}

func (s *Server) handleDocumentCatalog(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	catalog, err := s.deps.Store.Catalog(r.Context(), docID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "catalog": catalog})
}

// handleDeleteDocument removes a document from the record store and, when a
// graph store is configured, its subtree there.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	ctx := r.Context()

	deleted, err := s.deps.Store.Delete(ctx, docID)
	if err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if !deleted {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}

	graphDeleted := false
	if s.deps.Graph != nil {
		if err := s.deps.Graph.DeleteNode(ctx, pathstore.DocumentPrefix(docID), true); err != nil {
			s.log.Warn("graph delete failed", "doc_id", docID, "error", err)
		} else {
			graphDeleted = true
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"doc_id":        docID,
		"deleted":       true,
		"graph_deleted": graphDeleted,
	})
}

func storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}
