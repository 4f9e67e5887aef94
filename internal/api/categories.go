package api

import (
	"encoding/json"
	"net/http"

	"github.com/posai/scan-gateway/internal/store"
)

// decodeBody parses a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	categories, err := s.store.ListCategories(r.Context(), claims.UserID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, categories)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var c store.Category
	if err := decodeBody(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if c.Name == "" {
		writeError(w, http.StatusBadRequest, "category name required")
		return
	}
	c.UserID = claims.UserID
	id, err := s.store.CreateCategory(r.Context(), &c)
	if err != nil {
		storeError(w, err)
		return
	}
	created, err := s.store.GetCategory(r.Context(), claims.UserID, id)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	c, err := s.store.GetCategory(r.Context(), claims.UserID, pathID(r))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var c store.Category
	if err := decodeBody(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if c.Name == "" {
		writeError(w, http.StatusBadRequest, "category name required")
		return
	}
	c.ID = pathID(r)
	if err := s.store.UpdateCategory(r.Context(), claims.UserID, &c); err != nil {
		storeError(w, err)
		return
	}
	updated, err := s.store.GetCategory(r.Context(), claims.UserID, c.ID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if err := s.store.DeleteCategory(r.Context(), claims.UserID, pathID(r)); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
