// Package audit records one append-only entry per accepted mutation and serves the audit log.
package audit

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"garantias.org/internal/apperr"
)

// Action is the kind of change an entry documents.
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
	ActionDelete Action = "DELETE"
)

// ParseAction accepts the action name in any case.
func ParseAction(s string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("%w: unknown audit action %q", apperr.ErrValidation, s)
	}
	return a, nil
}

func (a Action) Valid() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

// Entry is one immutable audit log row.
type Entry struct {
	ID            string          `json:"id"`
	ActorID       string          `json:"actor_id"`
	Action        Action          `json:"action"`
	TableName     string          `json:"table_name"`
	RecordID      string          `json:"record_id,omitempty"`
	OldValues     json.RawMessage `json:"old_values"`
	NewValues     json.RawMessage `json:"new_values"`
	ClientAddress string          `json:"client_address,omitempty"`
	ClientAgent   string          `json:"client_agent,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Change describes a mutation about to be committed. Old and New may be any JSON-encodable value.
type Change struct {
	Action    Action
	TableName string
	RecordID  string
	Old       any
	New       any
}

// Snapshot encodes v as an open JSON document. Nil yields a nil document.
func Snapshot(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	if raw, ok := v.(json.RawMessage); ok {
		if len(raw) == 0 {
			return nil, nil
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("%w: snapshot is not valid JSON", apperr.ErrValidation)
		}
		return raw, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %v", apperr.ErrValidation, err)
	}
	if string(data) == "null" {
		return nil, nil
	}
	return data, nil
}

func (c Change) validate(oldDoc, newDoc json.RawMessage) error {
	if !c.Action.Valid() {
		return fmt.Errorf("%w: unknown audit action %q", apperr.ErrValidation, c.Action)
	}
	if strings.TrimSpace(c.TableName) == "" {
		return fmt.Errorf("%w: audit table name is required", apperr.ErrValidation)
	}
	switch c.Action {
	case ActionInsert:
		if oldDoc != nil || newDoc == nil {
			return fmt.Errorf("%w: INSERT requires new values only", apperr.ErrValidation)
		}
	case ActionUpdate:
		if oldDoc == nil || newDoc == nil {
			return fmt.Errorf("%w: UPDATE requires old and new values", apperr.ErrValidation)
		}
	case ActionDelete:
		if oldDoc == nil || newDoc != nil {
			return fmt.Errorf("%w: DELETE requires old values only", apperr.ErrValidation)
		}
	}
	return nil
}
