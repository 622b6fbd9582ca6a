package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"garantias.org/internal/apperr"
	"garantias.org/internal/auth"
)

type sliceAppender struct {
	entries []Entry
	err     error
}

func (a *sliceAppender) AppendAudit(_ context.Context, e Entry) error {
	if a.err != nil {
		return a.err
	}
	a.entries = append(a.entries, e)
	return nil
}

type record struct {
	ID       string `json:"id"`
	Region   string `json:"region"`
	IsActive bool   `json:"is_active"`
}

func actorCtx() context.Context {
	ctx := auth.ContextWithActor(context.Background(), auth.Actor{ID: "u-1", Role: auth.RoleAdmin})
	return WithClient(ctx, "10.0.0.7", "curl/8.0")
}

func TestRecordInsert(t *testing.T) {
	fixed := time.Date(2024, 6, 1, 10, 0, 0, 123456789, time.UTC)
	rec := NewRecorder(WithClock(func() time.Time { return fixed }))
	app := &sliceAppender{}

	e, err := rec.Record(actorCtx(), app, Change{
		Action:    ActionInsert,
		TableName: "guarantees",
		RecordID:  "g-1",
		New:       record{ID: "g-1", Region: "South", IsActive: true},
	})
	require.NoError(t, err)
	require.Len(t, app.entries, 1)
	assert.Equal(t, e, app.entries[0])

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, "u-1", e.ActorID)
	assert.Equal(t, "g-1", e.RecordID)
	assert.Nil(t, e.OldValues)
	assert.Equal(t, "10.0.0.7", e.ClientAddress)
	assert.Equal(t, "curl/8.0", e.ClientAgent)
	assert.Equal(t, fixed.Truncate(time.Microsecond), e.CreatedAt)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(e.NewValues, &doc))
	assert.Equal(t, "South", doc["region"])
}

func TestRecordUpdateKeepsBothImages(t *testing.T) {
	app := &sliceAppender{}
	before := record{ID: "g-1", IsActive: true}
	after := record{ID: "g-1", IsActive: false}

	e, err := NewRecorder().Record(actorCtx(), app, Change{
		Action: ActionUpdate, TableName: "guarantees", RecordID: "g-1", Old: before, New: after,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"g-1","region":"","is_active":true}`, string(e.OldValues))
	assert.JSONEq(t, `{"id":"g-1","region":"","is_active":false}`, string(e.NewValues))
}

func TestRecordRejectsMalformedChanges(t *testing.T) {
	cases := map[string]Change{
		"insert with old":    {Action: ActionInsert, TableName: "t", Old: record{}, New: record{}},
		"insert without new": {Action: ActionInsert, TableName: "t"},
		"update missing old": {Action: ActionUpdate, TableName: "t", New: record{}},
		"delete with new":    {Action: ActionDelete, TableName: "t", Old: record{}, New: record{}},
		"unknown action":     {Action: "UPSERT", TableName: "t", New: record{}},
		"no table":           {Action: ActionInsert, New: record{}},
		"invalid raw json":   {Action: ActionInsert, TableName: "t", New: json.RawMessage(`{`)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			app := &sliceAppender{}
			_, err := NewRecorder().Record(actorCtx(), app, c)
			assert.ErrorIs(t, err, apperr.ErrValidation)
			assert.Empty(t, app.entries)
		})
	}
}

func TestRecordDeleteAllowsNilNew(t *testing.T) {
	app := &sliceAppender{}
	e, err := NewRecorder().Record(actorCtx(), app, Change{
		Action: ActionDelete, TableName: "profiles", RecordID: "p-1", Old: map[string]any{"id": "p-1"},
	})
	require.NoError(t, err)
	assert.Nil(t, e.NewValues)
}

func TestRecordRequiresActor(t *testing.T) {
	app := &sliceAppender{}
	_, err := NewRecorder().Record(context.Background(), app, Change{Action: ActionInsert, TableName: "t", New: record{}})
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.Empty(t, app.entries)
}

func TestRecordAppendFailureIsStorageError(t *testing.T) {
	app := &sliceAppender{err: errors.New("disk full")}
	_, err := NewRecorder().Record(actorCtx(), app, Change{Action: ActionInsert, TableName: "t", New: record{}})
	assert.ErrorIs(t, err, apperr.ErrStorage)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" update ")
	require.NoError(t, err)
	assert.Equal(t, ActionUpdate, a)
	_, err = ParseAction("merge")
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestLogEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := WithRequestID(actorCtx(), "req-123")
	LogEntry(ctx, zap.New(core), Entry{ID: "a-1", ActorID: "u-1", Action: ActionInsert, TableName: "guarantees", RecordID: "g-1", ClientAddress: "10.0.0.7"})

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "audit", fields["type"])
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "g-1", fields["record_id"])
	assert.Equal(t, "INSERT", fields["action"])
}
