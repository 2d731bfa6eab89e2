// Package tape implements the event tape of spec §4.A: a chronologically
// ordered stream of market events exposed through two independent logical
// cursors — one advancing on exch_ts among EXCH_EVENT rows, one on
// local_ts among LOCAL_EVENT rows — over a single physical array.
package tape

import (
	"hftbacktest/internal/errors"
	"hftbacktest/internal/schema"
)

// Tape holds a decoded, validated event array and the two logical cursors
// §4.A describes. The core trusts the array's ordering at load time and
// never re-sorts at runtime.
type Tape struct {
	events []schema.Event

	exchIdx  []int
	localIdx []int

	exchPos  int
	localPos int
}

// New validates events against the §3 invariants and builds the two cursor
// index lists. Returns a *errors.CodedError with CodeDataInvalid on
// violation.
func New(events []schema.Event) (*Tape, error) {
	if err := Validate(events); err != nil {
		return nil, err
	}
	t := &Tape{events: events}
	for i, e := range events {
		if e.Flags.Has(schema.ExchEvent) {
			t.exchIdx = append(t.exchIdx, i)
		}
		if e.Flags.Has(schema.LocalEvent) {
			t.localIdx = append(t.localIdx, i)
		}
	}
	return t, nil
}

// Validate checks the §3 invariants: every row carries EXCH_EVENT or
// LOCAL_EVENT (or both); exch_ts is non-decreasing among EXCH_EVENT rows;
// local_ts is non-decreasing among LOCAL_EVENT rows; a row with both flags
// has local_ts >= exch_ts (the Open Question in §9 is resolved as
// reject-don't-clamp per the REDESIGN FLAG).
func Validate(events []schema.Event) error {
	var lastExch, lastLocal int64
	haveExch, haveLocal := false, false
	for i, e := range events {
		if !e.Valid() {
			return errors.NewCoded(errors.CodeDataInvalid, "event has neither EXCH_EVENT nor LOCAL_EVENT, or negative feed latency")
		}
		if e.Flags.Has(schema.ExchEvent) {
			if haveExch && e.ExchTs < lastExch {
				return errors.NewCoded(errors.CodeDataInvalid, "exch_ts is not non-decreasing")
			}
			lastExch = e.ExchTs
			haveExch = true
		}
		if e.Flags.Has(schema.LocalEvent) {
			if haveLocal && e.LocalTs < lastLocal {
				return errors.NewCoded(errors.CodeDataInvalid, "local_ts is not non-decreasing")
			}
			lastLocal = e.LocalTs
			haveLocal = true
		}
		_ = i
	}
	return nil
}

// Len returns the number of physical rows.
func (t *Tape) Len() int { return len(t.events) }

// PeekExch returns the next exchange-side event without consuming it.
func (t *Tape) PeekExch() (schema.Event, bool) {
	if t.exchPos >= len(t.exchIdx) {
		return schema.Event{}, false
	}
	return t.events[t.exchIdx[t.exchPos]], true
}

// PeekLocal returns the next local-side event without consuming it.
func (t *Tape) PeekLocal() (schema.Event, bool) {
	if t.localPos >= len(t.localIdx) {
		return schema.Event{}, false
	}
	return t.events[t.localIdx[t.localPos]], true
}

// PopExch consumes and returns the next exchange-side event.
func (t *Tape) PopExch() (schema.Event, bool) {
	e, ok := t.PeekExch()
	if ok {
		t.exchPos++
	}
	return e, ok
}

// PopLocal consumes and returns the next local-side event.
func (t *Tape) PopLocal() (schema.Event, bool) {
	e, ok := t.PeekLocal()
	if ok {
		t.localPos++
	}
	return e, ok
}

// ExchExhausted reports whether the exchange-side cursor has no more rows.
func (t *Tape) ExchExhausted() bool { return t.exchPos >= len(t.exchIdx) }

// LocalExhausted reports whether the local-side cursor has no more rows.
func (t *Tape) LocalExhausted() bool { return t.localPos >= len(t.localIdx) }

// Concat flattens multiple per-file event arrays into one physical array
// for New, inserting a synthetic DEPTH_CLEAR_EVENT between adjacent files
// when clearBetween is set (used when a later file supplies its own
// snapshot and the exchange-side book must not carry over stale levels
// across the file boundary, per §4.A).
func Concat(files [][]schema.Event, clearBetween bool) []schema.Event {
	total := 0
	for _, f := range files {
		total += len(f)
	}
	out := make([]schema.Event, 0, total+len(files))
	for i, f := range files {
		if i > 0 && clearBetween && len(f) > 0 {
			boundary := f[0]
			out = append(out, schema.Event{
				Flags:   schema.DepthClearEvent | schema.ExchEvent | schema.LocalEvent | schema.BuyEvent | schema.SellEvent,
				ExchTs:  boundary.ExchTs,
				LocalTs: boundary.LocalTs,
			})
		}
		out = append(out, f...)
	}
	return out
}
