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

// identity treats the datum itself as the quantity.
func identity(d any) (float64, error) { return d.(float64), nil }

func TestCountEntriesAndJSON(t *testing.T) {
	c := NewCount()
	for _, w := range []float64{1, 1, 1, 0.5} {
		require.NoError(t, c.Fill(0.0, w))
	}
	require.Equal(t, 3.5, c.Entries())

	data, err := ToJSON(c)
	require.NoError(t, err)
	require.Equal(t, `{"type":"Count","data":3.5}`, string(data))
}

func TestBinRouting(t *testing.T) {
	b, err := NewBin(5, 0.0, 5.0, NewQuantity(identity), NewCount())
	require.NoError(t, err)
	for _, q := range []float64{0.5, 0.5, 2.5, 4.999, 5.0, -1.0, math.NaN()} {
		require.NoError(t, b.Fill(q, 1.0))
	}
	var got []float64
	for _, v := range b.Values() {
		got = append(got, v.Entries())
	}
	require.Equal(t, []float64{2, 0, 1, 0, 1}, got)
	require.Equal(t, 1.0, b.Underflow().Entries())
	require.Equal(t, 1.0, b.Overflow().Entries())
	require.Equal(t, 1.0, b.Nanflow().Entries())
	require.Equal(t, 7.0, b.Entries())
}

func TestSparselyBinRouting(t *testing.T) {
	s, err := NewSparselyBin(1.0, 0.0, NewQuantity(identity), NewCount())
	require.NoError(t, err)
	for _, q := range []float64{0.2, 3.7, 3.9, -0.1} {
		require.NoError(t, s.Fill(q, 1.0))
	}
	require.Equal(t, 4.0, s.Entries())
	require.Equal(t, 3, s.NumFilled())
	for index, want := range map[int64]float64{0: 1, 3: 2, -1: 1} {
		sub, ok := s.At(index)
		require.True(t, ok, "bin %d should exist", index)
		require.Equal(t, want, sub.Entries(), "bin %d", index)
	}
	low, ok := s.Low()
	require.True(t, ok)
	require.Equal(t, -1.0, low)
	high, ok := s.High()
	require.True(t, ok)
	require.Equal(t, 4.0, high)
	require.Equal(t, int64(5), s.Num())
}

func TestSumMerge(t *testing.T) {
	a := NewSum(NewQuantity(identity))
	require.NoError(t, a.Fill(1.0, 1.0))
	require.NoError(t, a.Fill(3.0, 1.0))
	b := NewSum(NewQuantity(identity))
	for _, q := range []float64{2, 3, 4} {
		require.NoError(t, b.Fill(q, 1.0))
	}
	require.Equal(t, 2.0, a.Entries())
	require.Equal(t, 4.0, a.sum)
	require.Equal(t, 3.0, b.Entries())
	require.Equal(t, 9.0, b.sum)

	merged, err := a.Merge(b)
	require.NoError(t, err)
	require.Equal(t, 5.0, merged.Entries())
	require.Equal(t, 13.0, merged.(*Sum).sum)
}

func TestLabelRoundTripByteEqual(t *testing.T) {
	px := NewQuantity(func(d any) (float64, error) { return d.(map[string]float64)["px"], nil }).Named("px")
	pt := NewQuantity(func(d any) (float64, error) { return d.(map[string]float64)["pt"], nil }).Named("pt")
	pxBin, err := NewBin(3, -1.0, 1.0, px, NewCount())
	require.NoError(t, err)
	ptBin, err := NewBin(2, 0.0, 1.0, pt, NewCount())
	require.NoError(t, err)
	label, err := NewLabel(map[string]Aggregator{"px": pxBin, "pt": ptBin})
	require.NoError(t, err)

	require.NoError(t, label.Fill(map[string]float64{"px": 0.1, "pt": 0.5}, 1.0))

	first, err := ToJSON(label)
	require.NoError(t, err)

	past, err := FromJSON(first)
	require.NoError(t, err)

	merged, err := past.Merge(label.Zero())
	require.NoError(t, err)
	second, err := ToJSON(merged)
	require.NoError(t, err)
	require.Equal(t, string(first), string(second))
}

func TestAdaptivelyBinClustering(t *testing.T) {
	ab, err := NewAdaptivelyBin(3, 0.2, NewQuantity(identity), NewCount())
	require.NoError(t, err)
	for _, q := range []float64{0.0, 10.0, 10.1, 10.2, 20.0} {
		require.NoError(t, ab.Fill(q, 1.0))
	}
	require.Equal(t, 5.0, ab.Entries())
	clusters := ab.Clusters()
	require.Len(t, clusters, 3)
	require.InDelta(t, 0.0, clusters[0].Center, 1e-9)
	require.InDelta(t, 10.1, clusters[1].Center, 1e-9)
	require.InDelta(t, 20.0, clusters[2].Center, 1e-9)
	require.Equal(t, 1.0, clusters[0].Value.Entries())
	require.Equal(t, 3.0, clusters[1].Value.Entries())
	require.Equal(t, 1.0, clusters[2].Value.Entries())
}
