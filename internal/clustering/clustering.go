// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package clustering implements a one-pass 1D clustering structure: a
// sorted map from cluster center to an accumulated sub-value, capped
// at a fixed number of clusters. When the cap is exceeded, the two
// adjacent clusters with the smallest blended gap are merged into one
// centered at their sub-weighted mean.
package clustering

import (
	"math"

	"github.com/petar/GoLLRB/llrb"
)

// Value is the part of a cluster's sub-value the tree needs to see:
// its accumulated weight, used to place merged cluster centers.
type Value interface {
	Entries() float64
}

// Ops supplies the sub-value operations the tree cannot perform
// itself: combining two sub-values and making an independent copy of
// one (the tree never aliases sub-values between two trees).
type Ops struct {
	Merge func(a, b Value) (Value, error)
	Clone func(v Value) (Value, error)
}

type cluster struct {
	center float64
	value  Value
}

func (c *cluster) Less(than llrb.Item) bool {
	if o, ok := than.(*cluster); ok {
		return c.center < o.center
	}
	// than is one of llrb's ±Inf sentinels (e.g. Clusters' pivot)
	return !than.Less(c)
}

// Cluster is one (center, sub-value) pair as reported by Clusters.
type Cluster struct {
	Center float64
	Value  Value
}

// Tree is the capped sorted map of clusters plus the observed range
// and total weight of everything routed into it.
type Tree struct {
	Cap        int
	TailDetail float64
	Min        float64
	Max        float64
	Entries    float64

	ops Ops
	tr  *llrb.LLRB
}

// New returns an empty tree that will keep at most cap clusters.
func New(cap int, tailDetail float64, ops Ops) *Tree {
	return &Tree{
		Cap:        cap,
		TailDetail: tailDetail,
		Min:        math.NaN(),
		Max:        math.NaN(),
		ops:        ops,
		tr:         llrb.New(),
	}
}

// Len returns the current number of clusters.
func (t *Tree) Len() int { return t.tr.Len() }

// Get returns the sub-value of the cluster exactly at center, if any.
func (t *Tree) Get(center float64) (Value, bool) {
	item := t.tr.Get(&cluster{center: center})
	if item == nil {
		return nil, false
	}
	return item.(*cluster).value, true
}

// Put inserts or replaces the cluster at center. It does not compact;
// callers compact after inserting past the cap.
func (t *Tree) Put(center float64, v Value) {
	t.tr.ReplaceOrInsert(&cluster{center: center, value: v})
}

// Observe extends the observed min/max range by x and adds weight to
// the total. Called after the cluster update so that a compaction
// triggered by the same fill sees the range of all previous data.
func (t *Tree) Observe(x, weight float64) {
	if math.IsNaN(t.Min) || x < t.Min {
		t.Min = x
	}
	if math.IsNaN(t.Max) || x > t.Max {
		t.Max = x
	}
	t.Entries += weight
}

// Clusters returns all clusters in ascending center order.
func (t *Tree) Clusters() []Cluster {
	out := make([]Cluster, 0, t.tr.Len())
	t.tr.AscendGreaterOrEqual(llrb.Inf(-1), func(item llrb.Item) bool {
		c := item.(*cluster)
		out = append(out, Cluster{Center: c.center, Value: c.value})
		return true
	})
	return out
}

// gap is the blended distance between two adjacent clusters: mostly
// the plain center-to-center gap, with a tailDetail-weighted term that
// shrinks the effective gap of pairs far from the middle of the
// observed range, so the higher tailDetail is, the sooner pairs far
// from the middle are merged relative to central pairs.
func (t *Tree) gap(lo, hi Cluster) float64 {
	width := hi.Center - lo.Center
	distanceFromCenter := math.Abs((lo.Center+hi.Center)/2.0 - (t.Min+t.Max)/2.0)
	return (1.0-t.TailDetail)*width + t.TailDetail*width/(1.0+distanceFromCenter)
}

// Compact greedily merges the adjacent pair with the smallest blended
// gap until at most Cap clusters remain. The replacement cluster's
// center is the sub-weighted mean of the pair's centers.
func (t *Tree) Compact() error {
	for t.tr.Len() > t.Cap {
		cs := t.Clusters()
		best := 0
		bestGap := t.gap(cs[0], cs[1])
		for i := 1; i+1 < len(cs); i++ {
			if g := t.gap(cs[i], cs[i+1]); g < bestGap {
				bestGap = g
				best = i
			}
		}

		lo, hi := cs[best], cs[best+1]
		merged, err := t.ops.Merge(lo.Value, hi.Value)
		if err != nil {
			return err
		}
		center := (lo.Center*lo.Value.Entries() + hi.Center*hi.Value.Entries()) /
			(lo.Value.Entries() + hi.Value.Entries())

		t.tr.Delete(&cluster{center: lo.Center})
		t.tr.Delete(&cluster{center: hi.Center})
		t.tr.ReplaceOrInsert(&cluster{center: center, value: merged})
	}
	return nil
}

func nanMin(x, y float64) float64 {
	switch {
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	case x < y:
		return x
	default:
		return y
	}
}

func nanMax(x, y float64) float64 {
	switch {
	case math.IsNaN(x):
		return y
	case math.IsNaN(y):
		return x
	case x > y:
		return x
	default:
		return y
	}
}

// Merge key-unions t and other into a new tree, combining sub-values
// on equal centers and compacting back down to the cap. Sub-values
// from both operands are cloned, never aliased.
func (t *Tree) Merge(other *Tree) (*Tree, error) {
	out := New(t.Cap, t.TailDetail, t.ops)
	for _, c := range t.Clusters() {
		cp, err := t.ops.Clone(c.Value)
		if err != nil {
			return nil, err
		}
		out.Put(c.Center, cp)
	}
	for _, c := range other.Clusters() {
		if existing, ok := out.Get(c.Center); ok {
			merged, err := t.ops.Merge(existing, c.Value)
			if err != nil {
				return nil, err
			}
			out.Put(c.Center, merged)
		} else {
			cp, err := t.ops.Clone(c.Value)
			if err != nil {
				return nil, err
			}
			out.Put(c.Center, cp)
		}
	}
	out.Min = nanMin(t.Min, other.Min)
	out.Max = nanMax(t.Max, other.Max)
	out.Entries = t.Entries + other.Entries
	if err := out.Compact(); err != nil {
		return nil, err
	}
	return out, nil
}
