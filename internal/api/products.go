package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/posai/scan-gateway/internal/store"
)

// storeError translates storage sentinels into the client-facing shape at
// the handler boundary. Internal layers never format client messages.
func storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, store.ErrDuplicateCode):
		writeError(w, http.StatusConflict, "duplicate transaction code")
	case errors.Is(err, store.ErrForeignRow):
		writeError(w, http.StatusBadRequest, "referenced row does not exist")
	case errors.Is(err, store.ErrInvalidStatus):
		writeError(w, http.StatusConflict, "transaction cannot be cancelled in its current status")
	case errors.Is(err, store.ErrOwnerRequired):
		writeError(w, http.StatusBadRequest, "owner required")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	products, err := s.store.ListProducts(r.Context(), claims.UserID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var p store.Product
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.UserID = claims.UserID
	id, err := s.store.CreateProduct(r.Context(), &p)
	if err != nil {
		if errors.Is(err, store.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		storeError(w, err)
		return
	}
	created, err := s.store.GetProduct(r.Context(), claims.UserID, id)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	p, err := s.store.GetProduct(r.Context(), claims.UserID, pathID(r))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var p store.Product
	if err := decodeBody(r, &p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	p.ID = pathID(r)
	if err := s.store.UpdateProduct(r.Context(), claims.UserID, &p); err != nil {
		if errors.Is(err, store.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		storeError(w, err)
		return
	}
	updated, err := s.store.GetProduct(r.Context(), claims.UserID, p.ID)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	if err := s.store.DeleteProduct(r.Context(), claims.UserID, pathID(r)); err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
