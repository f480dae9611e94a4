// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ordmap provides a sorted int64-keyed map. Iteration is in
// ascending key order, which is what gives sparse bin tables a stable
// serialization order no matter what order the bins were created in.
package ordmap

import "github.com/google/btree"

type entry[V any] struct {
	key int64
	val V
}

// Map is a sorted map from int64 to V.
type Map[V any] struct {
	tr *btree.BTreeG[entry[V]]
}

// New returns an empty Map.
func New[V any]() *Map[V] {
	return &Map[V]{tr: btree.NewG(8, func(a, b entry[V]) bool { return a.key < b.key })}
}

// Len returns the number of keys.
func (m *Map[V]) Len() int { return m.tr.Len() }

// Get returns the value stored under key, if any.
func (m *Map[V]) Get(key int64) (V, bool) {
	e, ok := m.tr.Get(entry[V]{key: key})
	return e.val, ok
}

// Set stores val under key, replacing any previous value.
func (m *Map[V]) Set(key int64, val V) {
	m.tr.ReplaceOrInsert(entry[V]{key: key, val: val})
}

// MinKey returns the smallest key, or false when the map is empty.
func (m *Map[V]) MinKey() (int64, bool) {
	e, ok := m.tr.Min()
	return e.key, ok
}

// MaxKey returns the largest key, or false when the map is empty.
func (m *Map[V]) MaxKey() (int64, bool) {
	e, ok := m.tr.Max()
	return e.key, ok
}

// Ascend calls fn for every pair in ascending key order until fn
// returns false.
func (m *Map[V]) Ascend(fn func(key int64, val V) bool) {
	m.tr.Ascend(func(e entry[V]) bool { return fn(e.key, e.val) })
}
