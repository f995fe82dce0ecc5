package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// HistoryRecorder appends immutable status-history entries. A missing order
// id or empty status is a contract violation from upstream, not a user
// error: the recorder rejects it and the caller logs rather than retries.
type HistoryRecorder struct {
	logs LogStore
}

// NewHistoryRecorder constructs a HistoryRecorder over the given store.
func NewHistoryRecorder(logs LogStore) *HistoryRecorder {
	return &HistoryRecorder{logs: logs}
}

// Record appends one entry. changedAt is the business timestamp of the
// transition, not the time of this (asynchronous) call.
func (r *HistoryRecorder) Record(ctx context.Context, orderID string, st Status, changedAt time.Time) error {
	if orderID == "" {
		return errors.New("record status history: empty order id")
	}
	if st == "" {
		return errors.New("record status history: empty status")
	}
	return r.logs.AppendStatusLog(ctx, &StatusLog{
		ID:        uuid.New().String(),
		OrderID:   orderID,
		Status:    st,
		ChangedAt: changedAt,
	})
}
