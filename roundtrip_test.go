// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

// jsonValue renders a to canonical JSON and parses it back into plain
// maps/slices/floats, the shape go-cmp can diff with a numeric
// tolerance.
func jsonValue(t require.TestingT, a Aggregator) any {
	data, err := ToJSON(a)
	require.NoError(t, err)
	var v any
	require.NoError(t, json.Unmarshal(data, &v))
	return v
}

// requireEquivalent asserts two aggregators serialize to the same
// document up to floating-point round-off.
func requireEquivalent(t require.TestingT, want, got Aggregator) {
	diff := cmp.Diff(jsonValue(t, want), jsonValue(t, got), cmpopts.EquateApprox(1e-6, 1e-9))
	if diff != "" {
		t.Errorf("aggregators differ (-want +got):\n%s", diff)
		t.FailNow()
	}
}

// mustFill fills several weighted data into a fresh tree.
func mustFill(t require.TestingT, a Aggregator, data []float64, weights []float64) {
	for i, d := range data {
		w := 1.0
		if i < len(weights) {
			w = weights[i]
		}
		require.NoError(t, a.Fill(d, w))
	}
}

func signCategory(d any) (string, error) {
	if d.(float64) < 0 {
		return "neg", nil
	}
	return "pos", nil
}

// filledExamples builds one filled present-tense aggregator of every
// registered primitive.
func filledExamples(t require.TestingT) map[string]Aggregator {
	data := []float64{-3.5, -1.0, 0.0, 0.5, 2.5, 2.5, 7.75, math.NaN()}
	weights := []float64{1, 0.5, 2, 1, 1, 1.25, 1, 1}

	out := map[string]Aggregator{}
	add := func(name string, a Aggregator, err error) {
		require.NoError(t, err)
		mustFill(t, a, data, weights)
		out[name] = a
	}

	add("Count", NewCount(), nil)
	add("Sum", NewSum(NewQuantity(identity).Named("x")), nil)
	add("Average", NewAverage(NewQuantity(identity)), nil)
	add("Deviate", NewDeviate(NewQuantity(identity)), nil)
	add("AbsoluteErr", NewAbsoluteErr(NewQuantity(identity)), nil)
	add("Minimize", NewMinimize(NewQuantity(identity)), nil)
	add("Maximize", NewMaximize(NewQuantity(identity)), nil)

	quantile, err := NewQuantile(0.5, NewQuantity(identity))
	add("Quantile", quantile, err)

	// NaN keys are kept out of the Bags: a NaN scalar serializes as the
	// string "nan", which is indistinguishable from a string key.
	add("BagNumbers", NewBag(func(d any) (any, error) {
		x := d.(float64)
		if math.IsNaN(x) {
			x = -99
		}
		return x, nil
	}), nil)
	add("BagStrings", NewBag(func(d any) (any, error) {
		s, err := signCategory(d)
		return s, err
	}), nil)
	add("BagVectors", NewBag(func(d any) (any, error) {
		x := d.(float64)
		if math.IsNaN(x) {
			x = -99
		}
		return []float64{x, 2 * x}, nil
	}), nil)

	bin, err := NewBin(4, -2.0, 6.0, NewQuantity(identity).Named("x"), NewAverage(NewQuantity(identity)))
	add("Bin", bin, err)

	// named children exercise the values:name promotion
	profile, err := NewBin(3, -10.0, 10.0, NewQuantity(identity).Named("x"),
		NewAverage(NewQuantity(identity).Named("y")))
	add("BinOfNamedAverages", profile, err)

	sparse, err := NewSparselyBin(2.0, 0.5, NewQuantity(identity), NewCount())
	add("SparselyBin", sparse, err)

	central, err := NewCentrallyBin([]float64{-5, 0, 5}, NewQuantity(identity), NewCount())
	add("CentrallyBin", central, err)

	adaptive, err := NewAdaptivelyBin(4, 0.2, NewQuantity(identity), NewCount())
	add("AdaptivelyBin", adaptive, err)

	add("Categorize", NewCategorize(signCategory, NewCount()), nil)

	add("Select", NewSelect(NewQuantity(func(d any) (float64, error) {
		if d.(float64) > 0 {
			return 1.0, nil
		}
		return 0.0, nil
	}).Named("positive"), NewCount()), nil)

	limited, err := NewLimit(NewCount(), 100.0)
	add("Limit", limited, err)
	saturated, err := NewLimit(NewCount(), 2.0)
	add("LimitSaturated", saturated, err)

	add("Fraction", NewFraction(NewQuantity(func(d any) (float64, error) {
		return 0.5, nil
	}), NewSum(NewQuantity(identity))), nil)

	stack, err := NewStack(NewQuantity(identity), NewCount(), 0.0, 2.5)
	add("Stack", stack, err)

	partition, err := NewPartition(NewQuantity(identity), NewCount(), 0.0, 2.5)
	add("Partition", partition, err)

	la, err := NewBin(3, -4.0, 8.0, NewQuantity(identity), NewCount())
	require.NoError(t, err)
	lb, err := NewBin(2, 0.0, 4.0, NewQuantity(identity), NewCount())
	require.NoError(t, err)
	label, err := NewLabel(map[string]Aggregator{"wide": la, "narrow": lb})
	add("Label", label, err)

	untyped, err := NewUntypedLabel(map[string]Aggregator{
		"total": NewCount(),
		"mean":  NewAverage(NewQuantity(identity)),
	})
	add("UntypedLabel", untyped, err)

	index, err := NewIndex(NewSum(NewQuantity(identity)), NewSum(NewQuantity(identity)))
	add("Index", index, err)

	branch, err := NewBranch(NewCount(), NewMinimize(NewQuantity(identity)), NewMaximize(NewQuantity(identity)))
	add("Branch", branch, err)

	histogram, err := NewHistogram(6, -4.0, 8.0, NewQuantity(identity).Named("x"), Unweighted())
	add("Histogram", histogram, err)

	return out
}

func TestJSONRoundTrip(t *testing.T) {
	for name, a := range filledExamples(t) {
		t.Run(name, func(t *testing.T) {
			first, err := ToJSON(a)
			require.NoError(t, err)

			past, err := FromJSON(first)
			require.NoError(t, err)
			require.Equal(t, a.FactoryTag(), past.FactoryTag())
			require.Equal(t, a.Entries(), past.Entries())

			second, err := ToJSON(past)
			require.NoError(t, err)
			require.Equal(t, string(first), string(second))
		})
	}
}

func TestPastTenseMergesButDoesNotFill(t *testing.T) {
	for name, a := range filledExamples(t) {
		t.Run(name, func(t *testing.T) {
			data, err := ToJSON(a)
			require.NoError(t, err)
			past, err := FromJSON(data)
			require.NoError(t, err)

			merged, err := past.Merge(a.Zero())
			require.NoError(t, err)
			requireEquivalent(t, a, merged)

			switch name {
			case "Count", "Limit", "LimitSaturated":
				return // no fill rule of their own to lose
			}
			require.Error(t, past.Fill(1.0, 1.0))
		})
	}
}

func TestUnknownTypeError(t *testing.T) {
	_, err := FromJSON([]byte(`{"type":"NoSuchThing","data":1}`))
	var unknown *UnknownTypeError
	require.ErrorAs(t, err, &unknown)
}

func TestJSONFormatErrors(t *testing.T) {
	for _, bad := range []string{
		`[]`,
		`{"type":"Sum"}`,
		`{"type":"Sum","data":{"entries":1}}`,
		`{"type":"Sum","data":{"entries":1,"sum":2,"extra":3}}`,
		`{"type":"Bin","data":{"low":0,"high":1,"entries":0}}`,
	} {
		_, err := FromJSON([]byte(bad))
		var format *JSONFormatError
		require.ErrorAs(t, err, &format, "input %s", bad)
	}
}

func TestNegativeEntriesRejected(t *testing.T) {
	_, err := FromJSON([]byte(`{"type":"Sum","data":{"entries":-1,"sum":2}}`))
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
}

func TestStructureMismatches(t *testing.T) {
	sum := NewSum(NewQuantity(identity))
	_, err := sum.Merge(NewCount())
	var mismatch *StructureMismatch
	require.ErrorAs(t, err, &mismatch)

	a, err2 := NewBin(3, 0.0, 1.0, NewQuantity(identity), NewCount())
	require.NoError(t, err2)
	b, err2 := NewBin(4, 0.0, 1.0, NewQuantity(identity), NewCount())
	require.NoError(t, err2)
	_, err = a.Merge(b)
	require.ErrorAs(t, err, &mismatch)

	s1, err2 := NewSparselyBin(1.0, 0.0, NewQuantity(identity), NewCount())
	require.NoError(t, err2)
	s2, err2 := NewSparselyBin(2.0, 0.0, NewQuantity(identity), NewCount())
	require.NoError(t, err2)
	_, err = s1.Merge(s2)
	require.ErrorAs(t, err, &mismatch)
}

func TestConstructorValidation(t *testing.T) {
	var validation *ValidationError

	_, err := NewBin(0, 0.0, 1.0, NewQuantity(identity), NewCount())
	require.ErrorAs(t, err, &validation)
	_, err = NewBin(3, 1.0, 1.0, NewQuantity(identity), NewCount())
	require.ErrorAs(t, err, &validation)
	_, err = NewSparselyBin(0.0, 0.0, NewQuantity(identity), NewCount())
	require.ErrorAs(t, err, &validation)
	_, err = NewQuantile(1.5, NewQuantity(identity))
	require.ErrorAs(t, err, &validation)
	_, err = NewAdaptivelyBin(1, 0.2, NewQuantity(identity), NewCount())
	require.ErrorAs(t, err, &validation)
	_, err = NewAdaptivelyBin(10, 1.5, NewQuantity(identity), NewCount())
	require.ErrorAs(t, err, &validation)
	_, err = NewCentrallyBin([]float64{1}, NewQuantity(identity), NewCount())
	require.ErrorAs(t, err, &validation)
	_, err = NewStack(NewQuantity(identity), NewCount(), 2.0, 1.0)
	require.ErrorAs(t, err, &validation)
	_, err = NewLabel(map[string]Aggregator{})
	require.ErrorAs(t, err, &validation)
	_, err = NewLabel(map[string]Aggregator{"a": NewCount(), "b": NewSum(NewQuantity(identity))})
	require.ErrorAs(t, err, &validation)
	_, err = NewIndex()
	require.ErrorAs(t, err, &validation)
}

func TestQuantityNameOneShot(t *testing.T) {
	q := NewQuantity(identity)
	require.NoError(t, q.SetName("x"))
	require.NoError(t, q.SetName("x"))
	err := q.SetName("y")
	var conflict *NameConflict
	require.ErrorAs(t, err, &conflict)
}
