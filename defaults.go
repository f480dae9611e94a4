// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

// Default parameters for AdaptivelyBin, matching original_source's
// AdaptivelyBin.ing defaults.
const (
	DefaultAdaptiveBinCap = 100
	DefaultTailDetail     = 0.2
)

// QuantityCacheSize is the capacity of the LRU cache behind
// Quantity.Cached() — a single slot, since the only requirement is
// memoizing the immediately preceding call.
const QuantityCacheSize = 1
