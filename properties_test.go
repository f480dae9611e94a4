// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// monoidBuilders makes fresh, empty present-tense aggregators of the
// shapes the monoid laws are checked against. AdaptivelyBin is
// deliberately absent: its greedy cluster reduction is only
// approximately associative, so it gets its own bound checks instead.
func monoidBuilders(t require.TestingT) map[string]func() Aggregator {
	mustBin := func(num int, low, high float64, value Aggregator) Aggregator {
		b, err := NewBinWithFlows(num, low, high, NewQuantity(identity), value, NewCount(), NewCount(), NewCount())
		require.NoError(t, err)
		return b
	}
	return map[string]func() Aggregator{
		"Count":   func() Aggregator { return NewCount() },
		"Sum":     func() Aggregator { return NewSum(NewQuantity(identity)) },
		"Average": func() Aggregator { return NewAverage(NewQuantity(identity)) },
		"Deviate": func() Aggregator { return NewDeviate(NewQuantity(identity)) },
		"AbsoluteErr": func() Aggregator {
			return NewAbsoluteErr(NewQuantity(identity))
		},
		"Minimize": func() Aggregator { return NewMinimize(NewQuantity(identity)) },
		"Maximize": func() Aggregator { return NewMaximize(NewQuantity(identity)) },
		"Bag": func() Aggregator {
			return NewBag(func(d any) (any, error) { return d, nil })
		},
		"BinOfCounts": func() Aggregator {
			return mustBin(7, -50, 50, NewCount())
		},
		"BinOfAverages": func() Aggregator {
			return mustBin(4, -50, 50, NewAverage(NewQuantity(identity)))
		},
		"SparselyBin": func() Aggregator {
			s, err := NewSparselyBin(10.0, 0.0, NewQuantity(identity), NewCount())
			require.NoError(t, err)
			return s
		},
		"CentrallyBin": func() Aggregator {
			c, err := NewCentrallyBin([]float64{-20, 0, 20}, NewQuantity(identity), NewCount())
			require.NoError(t, err)
			return c
		},
		"Categorize": func() Aggregator {
			return NewCategorize(signCategory, NewCount())
		},
		"Select": func() Aggregator {
			return NewSelect(NewQuantity(func(d any) (float64, error) {
				if d.(float64) > 0 {
					return 1.0, nil
				}
				return 0.0, nil
			}), NewCount())
		},
		"Fraction": func() Aggregator {
			return NewFraction(NewQuantity(func(any) (float64, error) { return 0.5, nil }), NewCount())
		},
		"Stack": func() Aggregator {
			s, err := NewStack(NewQuantity(identity), NewCount(), -10.0, 10.0)
			require.NoError(t, err)
			return s
		},
		"Partition": func() Aggregator {
			p, err := NewPartition(NewQuantity(identity), NewCount(), -10.0, 10.0)
			require.NoError(t, err)
			return p
		},
		"Label": func() Aggregator {
			l, err := NewLabel(map[string]Aggregator{"n": NewCount(), "m": NewCount()})
			require.NoError(t, err)
			return l
		},
		"Index": func() Aggregator {
			x, err := NewIndex(NewSum(NewQuantity(identity)), NewSum(NewQuantity(identity)))
			require.NoError(t, err)
			return x
		},
		"Branch": func() Aggregator {
			b, err := NewBranch(NewCount(), NewMinimize(NewQuantity(identity)))
			require.NoError(t, err)
			return b
		},
	}
}

type weightedDatum struct {
	datum  float64
	weight float64
}

func drawDataset(rt *rapid.T, label string) []weightedDatum {
	n := rapid.IntRange(0, 15).Draw(rt, label+"N")
	out := make([]weightedDatum, n)
	for i := range out {
		out[i] = weightedDatum{
			datum:  rapid.Float64Range(-60, 60).Draw(rt, label+"Datum"),
			weight: rapid.Float64Range(0.25, 3).Draw(rt, label+"Weight"),
		}
	}
	return out
}

func fillDataset(t require.TestingT, a Aggregator, data []weightedDatum) {
	for _, d := range data {
		require.NoError(t, a.Fill(d.datum, d.weight))
	}
}

func totalWeight(data []weightedDatum) float64 {
	var total float64
	for _, d := range data {
		total += d.weight
	}
	return total
}

func TestMonoidLaws(t *testing.T) {
	for name, mk := range monoidBuilders(t) {
		t.Run(name, func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				dataA := drawDataset(rt, "a")
				dataB := drawDataset(rt, "b")
				dataC := drawDataset(rt, "c")

				a, b, c := mk(), mk(), mk()
				fillDataset(rt, a, dataA)
				fillDataset(rt, b, dataB)
				fillDataset(rt, c, dataC)

				// neutral element, both sides
				leftIdentity, err := a.Zero().Merge(a)
				require.NoError(rt, err)
				requireEquivalent(rt, a, leftIdentity)
				rightIdentity, err := a.Merge(a.Zero())
				require.NoError(rt, err)
				requireEquivalent(rt, a, rightIdentity)

				// commutativity
				ab, err := a.Merge(b)
				require.NoError(rt, err)
				ba, err := b.Merge(a)
				require.NoError(rt, err)
				requireEquivalent(rt, ab, ba)

				// associativity
				abThenC, err := ab.Merge(c)
				require.NoError(rt, err)
				bc, err := b.Merge(c)
				require.NoError(rt, err)
				aThenBC, err := a.Merge(bc)
				require.NoError(rt, err)
				requireEquivalent(rt, abThenC, aThenBC)

				// entry conservation
				require.InDelta(rt, a.Entries()+b.Entries(), ab.Entries(), 1e-9)
				require.InDelta(rt, totalWeight(dataA), a.Entries(), 1e-9)
			})
		})
	}
}

func TestFillMergeEquivalence(t *testing.T) {
	for name, mk := range monoidBuilders(t) {
		t.Run(name, func(t *testing.T) {
			rapid.Check(t, func(rt *rapid.T) {
				data := drawDataset(rt, "d")
				split := rapid.IntRange(0, len(data)).Draw(rt, "split")

				whole := mk()
				fillDataset(rt, whole, data)

				left, right := mk(), mk()
				fillDataset(rt, left, data[:split])
				fillDataset(rt, right, data[split:])
				merged, err := left.Merge(right)
				require.NoError(rt, err)

				requireEquivalent(rt, whole, merged)
			})
		})
	}
}

func TestAdaptivelyBinBoundProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		num := rapid.IntRange(2, 12).Draw(rt, "num")
		tailDetail := rapid.Float64Range(0, 1).Draw(rt, "tailDetail")
		a, err := NewAdaptivelyBin(num, tailDetail, NewQuantity(identity), NewCount())
		require.NoError(rt, err)

		data := drawDataset(rt, "d")
		for _, d := range data {
			require.NoError(rt, a.Fill(d.datum, d.weight))
			require.LessOrEqual(rt, len(a.Clusters()), num)
		}
		require.InDelta(rt, totalWeight(data), a.Entries(), 1e-9)

		b, err := NewAdaptivelyBin(num, tailDetail, NewQuantity(identity), NewCount())
		require.NoError(rt, err)
		fillDataset(rt, b, drawDataset(rt, "e"))

		merged, err := a.Merge(b)
		require.NoError(rt, err)
		require.LessOrEqual(rt, len(merged.(*AdaptivelyBin).Clusters()), num)
		require.InDelta(rt, a.Entries()+b.Entries(), merged.Entries(), 1e-9)
	})
}
