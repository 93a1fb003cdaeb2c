package events

import (
	"context"
	"database/sql"
	"time"
)

// Activity action tags. Exactly one entry is appended per successful mutation.
const (
	ActionCreated         = "created"
	ActionUpdated         = "updated"
	ActionStatusChanged   = "status_changed"
	ActionAcknowledged    = "acknowledged"
	ActionReceived        = "received"
	ActionAttachmentAdded = "attachment_added"
)

// Writer appends activity entries inside the caller's transaction so the
// entry commits or rolls back with the mutation it records.
type Writer struct {
	DB  *sql.DB
	Now func() time.Time
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, documentID, actorID, action, notes string) error {
	now := w.Now
	if now == nil {
		now = time.Now
	}
	ts := now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx, `INSERT INTO activities(document_id,actor_id,action,notes,created_at) VALUES (?,?,?,?,?)`,
		documentID, nullable(actorID), action, nullable(notes), ts)
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
