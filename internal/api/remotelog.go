package api

import (
	"net/http"
	"time"

	"github.com/posai/scan-gateway/internal/logsink"
)

// remoteRecord is the wire shape of one log line; timestamps arrive as
// ISO-8601 strings and unparseable ones fall back to receive time.
type remoteRecord struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

func (r remoteRecord) toSink() logsink.Record {
	ts, err := time.Parse(time.RFC3339, r.Timestamp)
	if err != nil {
		ts = time.Now()
	}
	return logsink.Record{Level: r.Level, Message: r.Message, Timestamp: ts}
}

// remoteLogRequest accepts both shapes: a single record with inline fields,
// or a batch under "logs".
type remoteLogRequest struct {
	Source    string         `json:"source"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Timestamp string         `json:"timestamp"`
	Logs      []remoteRecord `json:"logs"`
}

// handleRemoteLog appends mobile-client log batches to the sink. The sink
// flushes per batch, so a crash loses at most the in-flight batch.
func (s *Server) handleRemoteLog(w http.ResponseWriter, r *http.Request) {
	var req remoteLogRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Source == "" {
		writeError(w, http.StatusBadRequest, "source required")
		return
	}

	wire := req.Logs
	if len(wire) == 0 {
		if req.Message == "" {
			writeError(w, http.StatusBadRequest, "message or logs required")
			return
		}
		wire = []remoteRecord{{Level: req.Level, Message: req.Message, Timestamp: req.Timestamp}}
	}

	records := make([]logsink.Record, 0, len(wire))
	for _, rec := range wire {
		records = append(records, rec.toSink())
	}

	if err := s.sink.Append(req.Source, records); err != nil {
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "accepted": len(records)})
}
