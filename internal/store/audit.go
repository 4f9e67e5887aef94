package store

import (
	"context"
	"fmt"
)

// InsertScanAudit appends one best-effort row per processed frame. Callers
// run this off the response path; a lost row is tolerable.
func (s *Store) InsertScanAudit(ctx context.Context, a *ScanAudit) error {
	if a.UserID == 0 {
		return ErrOwnerRequired
	}
	_, err := s.exec(ctx,
		`INSERT INTO scan_audits (user_id, device_id, session_id, frame_seq, detection_count, outcome)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		a.UserID, a.DeviceID, a.SessionID, int64(a.FrameSeq), a.DetectionCount, a.Outcome)
	if err != nil {
		return fmt.Errorf("insert scan audit: %w", err)
	}
	return nil
}

// CountScanAudits reports rows for one user. Used by tests and ops queries.
func (s *Store) CountScanAudits(ctx context.Context, userID int64) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM scan_audits WHERE user_id = ?`, userID).Scan(&n)
	return n, err
}
