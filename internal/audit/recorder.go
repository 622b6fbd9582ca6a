package audit

import (
	"context"
	"time"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
	"garantias.org/internal/ids"
)

// Appender persists an entry inside the caller's unit of work.
type Appender interface {
	AppendAudit(ctx context.Context, e Entry) error
}

// Recorder builds audit entries and appends them through the mutation's transaction.
type Recorder struct {
	now func() time.Time
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock overrides the time source.
func WithClock(fn func() time.Time) RecorderOption {
	return func(r *Recorder) {
		if fn != nil {
			r.now = fn
		}
	}
}

func NewRecorder(opts ...RecorderOption) *Recorder {
	r := &Recorder{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Record appends one entry for c, attributed to the actor and client carried by ctx.
// Any error must abort the enclosing transaction.
func (r *Recorder) Record(ctx context.Context, app Appender, c Change) (Entry, error) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return Entry{}, apperr.ErrUnauthenticated
	}
	oldDoc, err := Snapshot(c.Old)
	if err != nil {
		return Entry{}, err
	}
	newDoc, err := Snapshot(c.New)
	if err != nil {
		return Entry{}, err
	}
	if err := c.validate(oldDoc, newDoc); err != nil {
		return Entry{}, err
	}

	now := r.now().UTC().Truncate(time.Microsecond)
	client := ClientFromContext(ctx)
	e := Entry{
		ID:            ids.NewAt(now),
		ActorID:       actor.ID,
		Action:        c.Action,
		TableName:     c.TableName,
		RecordID:      c.RecordID,
		OldValues:     oldDoc,
		NewValues:     newDoc,
		ClientAddress: client.Address,
		ClientAgent:   client.Agent,
		CreatedAt:     now,
	}
	if err := app.AppendAudit(ctx, e); err != nil {
		return Entry{}, apperr.Storage("append audit entry", err)
	}
	return e, nil
}
