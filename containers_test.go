// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSelectReweightsAndCutAliases(t *testing.T) {
	half := NewQuantity(func(any) (float64, error) { return 0.5, nil })
	sel := NewSelect(half, NewCount())
	require.NoError(t, sel.Fill(0.0, 2.0))
	require.Equal(t, 2.0, sel.Entries())
	require.Equal(t, 1.0, sel.Value().Entries())

	cut := NewCut(half, NewCount())
	require.Equal(t, "Select", cut.FactoryTag())

	rejectAll := NewSelect(NewQuantity(func(any) (float64, error) { return 0.0, nil }), NewCount())
	require.NoError(t, rejectAll.Fill(0.0, 1.0))
	require.Equal(t, 1.0, rejectAll.Entries())
	require.Equal(t, 0.0, rejectAll.Value().Entries())
}

func TestLimitDropsStrictlyAboveCapacity(t *testing.T) {
	l, err := NewLimit(NewCount(), 2.0)
	require.NoError(t, err)
	require.NoError(t, l.Fill(0.0, 1.0))
	require.NoError(t, l.Fill(0.0, 1.0))
	require.False(t, l.Saturated(), "entries exactly at capacity keep the sub")
	sub, ok := l.Get()
	require.True(t, ok)
	require.Equal(t, 2.0, sub.Entries())

	require.NoError(t, l.Fill(0.0, 1.0))
	require.True(t, l.Saturated())
	require.Equal(t, 3.0, l.Entries())

	// merge saturation propagates
	a, err := NewLimit(NewCount(), 2.0)
	require.NoError(t, err)
	require.NoError(t, a.Fill(0.0, 1.5))
	b, err := NewLimit(NewCount(), 2.0)
	require.NoError(t, err)
	require.NoError(t, b.Fill(0.0, 1.5))
	merged, err := a.Merge(b)
	require.NoError(t, err)
	require.True(t, merged.(*Limit).Saturated())
	require.Equal(t, 3.0, merged.Entries())
}

func TestFractionReweightsNumerator(t *testing.T) {
	f := NewFraction(NewQuantity(func(d any) (float64, error) {
		if d.(float64) > 0 {
			return 1.0, nil
		}
		return 0.0, nil
	}), NewCount())
	for _, q := range []float64{-1, 1, 2, -3} {
		require.NoError(t, f.Fill(q, 1.0))
	}
	require.Equal(t, 4.0, f.Entries())
	require.Equal(t, 4.0, f.Denominator().Entries())
	require.Equal(t, 2.0, f.Numerator().Entries())
}

func TestStackIsCumulative(t *testing.T) {
	s, err := NewStack(NewQuantity(identity), NewCount(), 0.0, 2.0)
	require.NoError(t, err)
	require.Equal(t, []float64{math.Inf(-1), 0.0, 2.0}, s.Thresholds())

	require.NoError(t, s.Fill(1.0, 1.0))
	require.NoError(t, s.Fill(3.0, 1.0))
	require.NoError(t, s.Fill(-7.0, 1.0))
	require.NoError(t, s.Fill(math.NaN(), 1.0))

	values := s.Values()
	require.Equal(t, 3.0, values[0].Entries(), "-inf cut sees all non-NaN data")
	require.Equal(t, 2.0, values[1].Entries())
	require.Equal(t, 1.0, values[2].Entries())
	require.Equal(t, 4.0, s.Entries())
}

func TestPartitionRoutesToOneInterval(t *testing.T) {
	p, err := NewPartition(NewQuantity(identity), NewCount(), 0.0, 2.0)
	require.NoError(t, err)

	require.NoError(t, p.Fill(-5.0, 1.0))
	require.NoError(t, p.Fill(1.0, 1.0))
	require.NoError(t, p.Fill(2.0, 1.0))
	require.NoError(t, p.Fill(30.0, 1.0))
	require.NoError(t, p.Fill(math.NaN(), 1.0))

	values := p.Values()
	require.Equal(t, 1.0, values[0].Entries())
	require.Equal(t, 1.0, values[1].Entries())
	require.Equal(t, 2.0, values[2].Entries(), "2.0 lands in [2, inf)")
	require.Equal(t, 5.0, p.Entries())
}

func TestCentrallyBinNearestCenter(t *testing.T) {
	c, err := NewCentrallyBin([]float64{0, 10}, NewQuantity(identity), NewCount())
	require.NoError(t, err)

	require.NoError(t, c.Fill(4.0, 1.0))
	require.NoError(t, c.Fill(5.0, 1.0)) // tie goes to the lower center
	require.NoError(t, c.Fill(6.0, 1.0))
	require.NoError(t, c.Fill(-100.0, 1.0))
	require.NoError(t, c.Fill(math.NaN(), 1.0))

	require.Equal(t, 3.0, c.At(0.0).Entries())
	require.Equal(t, 1.0, c.At(10.0).Entries())
	require.Equal(t, 1.0, c.Nanflow().Entries())
	require.Equal(t, 5.0, c.Entries())
	require.Equal(t, -100.0, c.Min())
	require.Equal(t, 6.0, c.Max())
}

func TestCategorizeCreatesBinsOnDemand(t *testing.T) {
	c := NewCategorize(signCategory, NewCount())
	for _, q := range []float64{-1, -2, 3} {
		require.NoError(t, c.Fill(q, 1.0))
	}
	require.Equal(t, 2, c.Size())
	require.Equal(t, []string{"neg", "pos"}, c.Keys())
	neg, ok := c.Get("neg")
	require.True(t, ok)
	require.Equal(t, 2.0, neg.Entries())

	other := NewCategorize(signCategory, NewCount())
	require.NoError(t, other.Fill(5.0, 1.0))
	merged, err := c.Merge(other)
	require.NoError(t, err)
	pos, ok := merged.(*Categorize).Get("pos")
	require.True(t, ok)
	require.Equal(t, 2.0, pos.Entries())
	require.Equal(t, 4.0, merged.Entries())
}

func TestBroadcastComposites(t *testing.T) {
	label, err := NewLabel(map[string]Aggregator{"a": NewCount(), "b": NewCount()})
	require.NoError(t, err)
	index, err := NewIndex(NewCount(), NewCount())
	require.NoError(t, err)
	branch, err := NewBranch(NewCount(), NewSum(NewQuantity(identity)))
	require.NoError(t, err)
	untyped, err := NewUntypedLabel(map[string]Aggregator{"n": NewCount(), "sum": NewSum(NewQuantity(identity))})
	require.NoError(t, err)

	for _, a := range []Aggregator{label, index, branch, untyped} {
		require.NoError(t, a.Fill(2.0, 1.0))
		require.NoError(t, a.Fill(3.0, 0.5))
		require.Equal(t, 1.5, a.Entries())
		for _, child := range a.Children() {
			require.Equal(t, 1.5, child.Entries())
		}
	}

	// label keys must match to merge
	other, err := NewLabel(map[string]Aggregator{"a": NewCount(), "c": NewCount()})
	require.NoError(t, err)
	_, err = label.Merge(other)
	var mismatch *StructureMismatch
	require.ErrorAs(t, err, &mismatch)
}

func TestBagVectorLengthMismatch(t *testing.T) {
	b := NewBag(func(d any) (any, error) { return d, nil })
	require.NoError(t, b.Fill([]float64{1, 2}, 1.0))
	err := b.Fill([]float64{1, 2, 3}, 1.0)
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestQuantityCaching(t *testing.T) {
	calls := 0
	q := NewQuantity(func(d any) (float64, error) {
		calls++
		return d.(float64) * 2, nil
	}).Cached()

	v, err := q.Eval(3.0)
	require.NoError(t, err)
	require.Equal(t, 6.0, v)
	v, err = q.Eval(3.0)
	require.NoError(t, err)
	require.Equal(t, 6.0, v)
	require.Equal(t, 1, calls)
}

func TestZeroWeightIsNoOp(t *testing.T) {
	for name, a := range filledExamples(t) {
		before := a.Entries()
		require.NoError(t, a.Fill(1.0, 0.0), name)
		require.NoError(t, a.Fill(1.0, -2.5), name)
		require.Equal(t, before, a.Entries(), name)
	}
}

func TestAdaptivelyBinCapHoldsUnderMerge(t *testing.T) {
	a, err := NewAdaptivelyBin(5, 0.0, NewQuantity(identity), NewCount())
	require.NoError(t, err)
	b, err := NewAdaptivelyBin(5, 0.0, NewQuantity(identity), NewCount())
	require.NoError(t, err)
	for i := 0; i < 40; i++ {
		require.NoError(t, a.Fill(float64(i)*1.7, 1.0))
		require.NoError(t, b.Fill(float64(i)*-0.9, 1.0))
		require.LessOrEqual(t, len(a.Clusters()), 5)
	}
	merged, err := a.Merge(b)
	require.NoError(t, err)
	require.LessOrEqual(t, len(merged.(*AdaptivelyBin).Clusters()), 5)
	require.Equal(t, 80.0, merged.Entries())
}
