package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/posai/scan-gateway/internal/metrics"
	"github.com/posai/scan-gateway/internal/store"
)

// parseTimeRange reads optional start/end ISO-8601 query parameters.
func parseTimeRange(r *http.Request) (start, end *time.Time, err error) {
	if v := r.URL.Query().Get("start"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return nil, nil, perr
		}
		start = &t
	}
	if v := r.URL.Query().Get("end"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			return nil, nil, perr
		}
		end = &t
	}
	return start, end, nil
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	var in store.CheckoutInput
	if err := decodeBody(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	committed, err := s.store.Checkout(r.Context(), claims.UserID, &in)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateCode):
			metrics.CheckoutsTotal.WithLabelValues("duplicate").Inc()
		case errors.Is(err, store.ErrForeignRow), errors.Is(err, store.ErrValidation):
			metrics.CheckoutsTotal.WithLabelValues("rejected").Inc()
		default:
			metrics.CheckoutsTotal.WithLabelValues("failed").Inc()
		}
		// Only input errors echo their message; everything unclassified is a
		// storage failure and reports an opaque 500 through storeError.
		if errors.Is(err, store.ErrValidation) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		storeError(w, err)
		return
	}

	metrics.CheckoutsTotal.WithLabelValues("committed").Inc()
	writeJSON(w, http.StatusCreated, committed)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start/end parameter")
		return
	}
	list, err := s.store.ListTransactions(r.Context(), claims.UserID, start, end)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	t, err := s.store.GetTransaction(r.Context(), claims.UserID, pathID(r))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTransactionItems(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	items, err := s.store.ListTransactionItems(r.Context(), claims.UserID, pathID(r))
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleCancelTransaction(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	id := pathID(r)
	if err := s.store.CancelTransaction(r.Context(), claims.UserID, id); err != nil {
		storeError(w, err)
		return
	}
	t, err := s.store.GetTransaction(r.Context(), claims.UserID, id)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleTransactionSummary(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r)
	start, end, err := parseTimeRange(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start/end parameter")
		return
	}
	summary, err := s.store.SummarizeTransactions(r.Context(), claims.UserID, start, end)
	if err != nil {
		storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
