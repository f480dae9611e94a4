// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

// Unweighted returns a selection that accepts every datum at full
// weight.
func Unweighted() *Quantity {
	return NewQuantity(func(any) (float64, error) { return 1.0, nil })
}

// NewHistogram is the conventional histogram composition: a Select
// gating a Bin of Counts, so the cut and the binning stay separately
// mergeable.
func NewHistogram(num int, low, high float64, quantity, selection *Quantity) (*Select, error) {
	bin, err := NewBin(num, low, high, quantity, NewCount())
	if err != nil {
		return nil, err
	}
	return NewSelect(selection, bin), nil
}

// NewSparselyHistogram is NewHistogram over an unbounded axis: a
// Select gating a SparselyBin of Counts.
func NewSparselyHistogram(binWidth, origin float64, quantity, selection *Quantity) (*Select, error) {
	bins, err := NewSparselyBin(binWidth, origin, quantity, NewCount())
	if err != nil {
		return nil, err
	}
	return NewSelect(selection, bins), nil
}

// NewProfile bins one quantity and averages another in each bin, the
// classic profile plot.
func NewProfile(num int, low, high float64, binnedQuantity, averagedQuantity, selection *Quantity) (*Select, error) {
	bin, err := NewBin(num, low, high, binnedQuantity, NewAverage(averagedQuantity))
	if err != nil {
		return nil, err
	}
	return NewSelect(selection, bin), nil
}
