// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package histogrammar implements a composable aggregation algebra:
// small, mergeable statistical primitives (counters, histograms,
// clustering estimators, branching composites) that fill from a
// stream of weighted data and combine associatively, so partial
// aggregates computed anywhere can always be summed into a whole one.
package histogrammar

import "github.com/mailru/easyjson/jwriter"

// Aggregator is the sealed contract every primitive in this package
// implements. A value is "present tense" when it still holds a fill
// rule (built by a constructor such as NewCount) and "past tense" when
// it was rebuilt by FromJSON — a past-tense aggregator can still be
// merged and re-serialized but Fill returns errFillPastTense.
//
// The interface carries an unexported method so only this package can
// introduce new implementations, matching the closed sum-type shape
// of the original algebra.
type Aggregator interface {
	// FactoryTag is the registered name under which this
	// aggregator's shape is (de)serialized, e.g. "Count", "Bin".
	FactoryTag() string

	// Entries is the total weight absorbed by Fill calls (or by
	// Merge of aggregators that absorbed them).
	Entries() float64

	// Zero returns a fresh aggregator with the same shape and fill
	// rule as this one, but no accumulated data — the algebra's
	// neutral element.
	Zero() Aggregator

	// Merge combines this aggregator with other, which must have an
	// identical shape (same concrete type, same structural
	// parameters). It returns a new aggregator; neither receiver nor
	// argument is mutated.
	Merge(other Aggregator) (Aggregator, error)

	// Fill absorbs one weighted datum. weight <= 0 is a no-op.
	Fill(datum any, weight float64) error

	// Children lists the immediate sub-aggregators, or nil for a
	// leaf. Used for generic tree traversal (entries sanity checks,
	// printers) without type-switching on every primitive.
	Children() []Aggregator

	// writeFragment serializes this aggregator's "data" fragment
	// (the payload of {"type":..., "data": ...}). suppressName omits
	// this aggregator's own quantity name — used when a containing
	// aggregator already promoted that name to a sibling
	// "values:name"/"data:name"/"sub:name" key.
	writeFragment(w *jwriter.Writer, suppressName bool)
}

// ToJSON renders a into the canonical {"type": ..., "data": ...}
// envelope.
func ToJSON(a Aggregator) ([]byte, error) {
	w := &jwriter.Writer{}
	w.RawByte('{')
	w.RawString(`"type":`)
	w.String(a.FactoryTag())
	w.RawByte(',')
	w.RawString(`"data":`)
	a.writeFragment(w, false)
	w.RawByte('}')
	return w.BuildBytes()
}

// cloneAggregator deep-copies a by merging it with its own neutral
// element, so key-union merges never alias substructure between the
// result and either operand.
func cloneAggregator(a Aggregator) (Aggregator, error) {
	return a.Merge(a.Zero())
}

// sumEntries recursively sums Entries() across a and its whole tree,
// a generic sanity check that every container's own Entries() should
// equal (ignoring selection/weighting primitives which may diverge by
// design, e.g. Select, Fraction).
func sumEntries(a Aggregator) float64 {
	total := a.Entries()
	for _, c := range a.Children() {
		total += sumEntries(c)
	}
	return total
}
