// Package query implements the in-memory filters applied to guarantee and audit listings.
package query

import (
	"fmt"
	"strings"
	"time"

	"garantias.org/internal/apperr"
)

const dateLayout = "2006-01-02"

// Predicate reports whether an item is kept.
type Predicate[T any] func(T) bool

// Apply returns the items matching every predicate, preserving order. Nil predicates are ignored.
func Apply[T any](items []T, preds ...Predicate[T]) []T {
	out := make([]T, 0, len(items))
next:
	for _, item := range items {
		for _, p := range preds {
			if p != nil && !p(item) {
				continue next
			}
		}
		out = append(out, item)
	}
	return out
}

// Equal matches items whose field equals want. A zero want matches everything.
func Equal[T any, V comparable](want V, field func(T) V) Predicate[T] {
	var zero V
	if want == zero {
		return nil
	}
	return func(item T) bool { return field(item) == want }
}

// Text matches items where any of the extracted fields contains term, ignoring case.
// A blank term matches everything.
func Text[T any](term string, fields func(T) []string) Predicate[T] {
	if strings.TrimSpace(term) == "" {
		return nil
	}
	return func(item T) bool { return ContainsFold(term, fields(item)...) }
}

// ContainsFold reports whether any field contains term case-insensitively.
func ContainsFold(term string, fields ...string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), term) {
			return true
		}
	}
	return false
}

// DateRange bounds a timestamp. From is inclusive; until is exclusive. Zero bounds are open.
type DateRange struct {
	From  time.Time
	until time.Time
}

// ParseDateRange parses optional YYYY-MM-DD bounds (UTC). The upper bound covers the whole day.
// RFC 3339 timestamps are also accepted and then bound to the exact instant.
func ParseDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if s := strings.TrimSpace(from); s != "" {
		t, _, err := parseBound(s)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: invalid from date %q", apperr.ErrValidation, s)
		}
		r.From = t
	}
	if s := strings.TrimSpace(to); s != "" {
		t, dayOnly, err := parseBound(s)
		if err != nil {
			return DateRange{}, fmt.Errorf("%w: invalid to date %q", apperr.ErrValidation, s)
		}
		if dayOnly {
			r.until = t.AddDate(0, 0, 1)
		} else {
			r.until = t.Add(time.Nanosecond)
		}
	}
	if !r.From.IsZero() && !r.until.IsZero() && !r.From.Before(r.until) {
		return DateRange{}, fmt.Errorf("%w: from date is after to date", apperr.ErrValidation)
	}
	return r, nil
}

// Until returns the exclusive upper bound, zero when open.
func (r DateRange) Until() time.Time { return r.until }

func (r DateRange) IsZero() bool { return r.From.IsZero() && r.until.IsZero() }

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && t.Before(r.From) {
		return false
	}
	if !r.until.IsZero() && !t.Before(r.until) {
		return false
	}
	return true
}

// Within matches items whose extracted timestamp falls inside r.
func Within[T any](r DateRange, at func(T) time.Time) Predicate[T] {
	if r.IsZero() {
		return nil
	}
	return func(item T) bool { return r.Contains(at(item)) }
}

func parseBound(s string) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(dateLayout, s, time.UTC); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}
