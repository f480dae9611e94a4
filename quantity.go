// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import lru "github.com/hashicorp/golang-lru"

// Quantity wraps a DATUM -> float64 extractor with an optional name
// and an optional memoizing cache. An aggregator built by a live
// constructor (e.g. NewSum) carries a Quantity with a non-nil
// function; an aggregator rebuilt by FromJSON carries a Quantity that
// is name-only (fn is nil) — its present/past tense is exactly
// whether this function is set.
type Quantity struct {
	name    string
	named   bool
	fn      func(datum any) (float64, error)
	cache   *lru.Cache
}

// NewQuantity wraps fn as a fillable quantity with no name yet.
func NewQuantity(fn func(datum any) (float64, error)) *Quantity {
	return &Quantity{fn: fn}
}

// namedQuantity reconstructs a past-tense (fn == nil) Quantity
// carrying only the name recorded in JSON, as original_source's
// fromJsonFragment does by setting quantity.name directly.
func namedQuantity(name string) *Quantity {
	q := &Quantity{}
	if name != "" {
		q.name = name
		q.named = true
	}
	return q
}

// Name returns the quantity's name, or "" if unnamed.
func (q *Quantity) Name() string {
	if q == nil {
		return ""
	}
	return q.name
}

// Named returns q with name set, for chaining at construction time:
// NewQuantity(fn).Named("px"). It panics if q is already named with a
// different name, mirroring the "one-shot" design: callers that need
// error-returning renaming should use SetName instead.
func (q *Quantity) Named(name string) *Quantity {
	if err := q.SetName(name); err != nil {
		panic(err)
	}
	return q
}

// SetName assigns q's name once. A second call with a different name
// returns a NameConflict; a second call with the same name is a no-op.
func (q *Quantity) SetName(name string) error {
	if q.named && q.name != name {
		return nameConflictf("quantity already named %q, cannot rename to %q", q.name, name)
	}
	q.name = name
	q.named = true
	return nil
}

// Cached wraps q with a single-slot memoizing cache, mirroring
// original_source's util.cache(fcn) turning a Fcn into a CachedFcn:
// consecutive Eval calls with an equal datum skip re-evaluating fn.
// Only usable with a comparable DATUM type, since the cache keys on
// datum equality.
func (q *Quantity) Cached() *Quantity {
	cache, err := lru.New(QuantityCacheSize)
	if err != nil {
		panic(err)
	}
	return &Quantity{name: q.name, named: q.named, fn: q.fn, cache: cache}
}

// Fillable reports whether q carries a live extractor function, i.e.
// whether the aggregator holding it is present tense.
func (q *Quantity) Fillable() bool {
	return q != nil && q.fn != nil
}

// Eval extracts the quantity's value from datum, memoizing through
// q.cache when present.
func (q *Quantity) Eval(datum any) (float64, error) {
	if !q.Fillable() {
		return 0, errFillPastTense
	}
	if q.cache != nil {
		if v, ok := q.cache.Get(datum); ok {
			return v.(float64), nil
		}
	}
	v, err := q.fn(datum)
	if err != nil {
		return 0, err
	}
	if q.cache != nil {
		q.cache.Add(datum, v)
	}
	return v, nil
}

// clone produces an independent Quantity sharing the same function
// and name, mirroring the role original_source's Container.copy()
// plays for quantity-bearing containers.
func (q *Quantity) clone() *Quantity {
	if q == nil {
		return nil
	}
	return &Quantity{name: q.name, named: q.named, fn: q.fn}
}
