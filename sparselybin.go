// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"
	"math"
	"strconv"

	"github.com/mailru/easyjson/jwriter"

	"github.com/VKCOM/histogrammar/internal/ordmap"
)

// SparselyBin is a histogram over an unbounded axis: bins of a fixed
// width anchored at origin, created on demand when first filled, so
// memory is proportional to the number of occupied bins rather than
// the span of the data. NaN goes to nanflow; there is no underflow or
// overflow because the axis has no edges.
type SparselyBin struct {
	binWidth    float64
	origin      float64
	quantity    *Quantity
	value       Aggregator // template; nil after deserialization
	contentType string
	entries     float64
	bins        *ordmap.Map[Aggregator]
	nanflow     Aggregator
}

// NewSparselyBin returns an empty, fillable SparselyBin of the given
// bin width and origin (the left edge of bin 0), with a Count
// nanflow.
func NewSparselyBin(binWidth, origin float64, quantity *Quantity, value Aggregator) (*SparselyBin, error) {
	return NewSparselyBinWithNanflow(binWidth, origin, quantity, value, NewCount())
}

// NewSparselyBinWithNanflow is NewSparselyBin with an explicit NaN
// sink aggregator.
func NewSparselyBinWithNanflow(binWidth, origin float64, quantity *Quantity, value, nanflow Aggregator) (*SparselyBin, error) {
	if binWidth <= 0.0 {
		return nil, validationErrorf("binWidth (%v) must be greater than zero", binWidth)
	}
	return &SparselyBin{
		binWidth:    binWidth,
		origin:      origin,
		quantity:    quantity,
		value:       value,
		contentType: value.FactoryTag(),
		bins:        ordmap.New[Aggregator](),
		nanflow:     nanflow.Zero(),
	}, nil
}

func (s *SparselyBin) FactoryTag() string { return "SparselyBin" }
func (s *SparselyBin) Entries() float64   { return s.entries }
func (s *SparselyBin) BinWidth() float64  { return s.binWidth }
func (s *SparselyBin) Origin() float64    { return s.origin }
func (s *SparselyBin) Nanflow() Aggregator { return s.nanflow }

// NumFilled is the number of bins that have been created.
func (s *SparselyBin) NumFilled() int { return s.bins.Len() }

// Num is the span of occupied bin indexes, maxBin-minBin+1, or zero
// when nothing has been filled.
func (s *SparselyBin) Num() int64 {
	min, ok := s.bins.MinKey()
	if !ok {
		return 0
	}
	max, _ := s.bins.MaxKey()
	return max - min + 1
}

// Low is the left edge of the lowest occupied bin; false when empty.
func (s *SparselyBin) Low() (float64, bool) {
	min, ok := s.bins.MinKey()
	if !ok {
		return 0, false
	}
	return float64(min)*s.binWidth + s.origin, true
}

// High is the right edge of the highest occupied bin; false when
// empty.
func (s *SparselyBin) High() (float64, bool) {
	max, ok := s.bins.MaxKey()
	if !ok {
		return 0, false
	}
	return float64(max+1)*s.binWidth + s.origin, true
}

// At returns the sub-aggregator for a bin index, if that bin has been
// filled.
func (s *SparselyBin) At(index int64) (Aggregator, bool) { return s.bins.Get(index) }

// BinIndex maps a quantity value to its bin index.
func (s *SparselyBin) BinIndex(q float64) int64 {
	return int64(math.Floor((q - s.origin) / s.binWidth))
}

func (s *SparselyBin) Children() []Aggregator {
	out := make([]Aggregator, 0, s.bins.Len()+1)
	out = append(out, s.nanflow)
	s.bins.Ascend(func(_ int64, v Aggregator) bool {
		out = append(out, v)
		return true
	})
	return out
}

func (s *SparselyBin) Zero() Aggregator {
	return &SparselyBin{
		binWidth:    s.binWidth,
		origin:      s.origin,
		quantity:    s.quantity.clone(),
		value:       s.value,
		contentType: s.contentType,
		bins:        ordmap.New[Aggregator](),
		nanflow:     s.nanflow.Zero(),
	}
}

func (s *SparselyBin) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*SparselyBin)
	if !ok {
		return nil, structureMismatchf("cannot merge SparselyBin with %s", other.FactoryTag())
	}
	if s.binWidth != o.binWidth {
		return nil, structureMismatchf("cannot merge SparselyBins because binWidth differs (%v vs %v)", s.binWidth, o.binWidth)
	}
	if s.origin != o.origin {
		return nil, structureMismatchf("cannot merge SparselyBins because origin differs (%v vs %v)", s.origin, o.origin)
	}
	nanflow, err := s.nanflow.Merge(o.nanflow)
	if err != nil {
		return nil, wrapStructureMismatch(err, "SparselyBin.nanflow")
	}
	out := &SparselyBin{
		binWidth:    s.binWidth,
		origin:      s.origin,
		quantity:    s.quantity.clone(),
		value:       s.value,
		contentType: s.contentType,
		entries:     s.entries + o.entries,
		bins:        ordmap.New[Aggregator](),
		nanflow:     nanflow,
	}
	var mergeErr error
	s.bins.Ascend(func(i int64, v Aggregator) bool {
		cp, err := cloneAggregator(v)
		if err != nil {
			mergeErr = wrapStructureMismatch(err, fmt.Sprintf("SparselyBin.bins[%d]", i))
			return false
		}
		out.bins.Set(i, cp)
		return true
	})
	if mergeErr != nil {
		return nil, mergeErr
	}
	o.bins.Ascend(func(i int64, v Aggregator) bool {
		if existing, ok := out.bins.Get(i); ok {
			m, err := existing.Merge(v)
			if err != nil {
				mergeErr = wrapStructureMismatch(err, fmt.Sprintf("SparselyBin.bins[%d]", i))
				return false
			}
			out.bins.Set(i, m)
			return true
		}
		cp, err := cloneAggregator(v)
		if err != nil {
			mergeErr = wrapStructureMismatch(err, fmt.Sprintf("SparselyBin.bins[%d]", i))
			return false
		}
		out.bins.Set(i, cp)
		return true
	})
	if mergeErr != nil {
		return nil, mergeErr
	}
	return out, nil
}

func (s *SparselyBin) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := s.quantity.Eval(datum)
	if err != nil {
		return err
	}
	if math.IsNaN(q) {
		if err := s.nanflow.Fill(datum, weight); err != nil {
			return err
		}
	} else {
		if s.value == nil {
			return errFillPastTense
		}
		b := s.BinIndex(q)
		sub, ok := s.bins.Get(b)
		if !ok {
			sub = s.value.Zero()
			s.bins.Set(b, sub)
		}
		if err := sub.Fill(datum, weight); err != nil {
			return err
		}
	}
	s.entries += weight
	return nil
}

func (s *SparselyBin) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"binWidth":`)
	writeFloat(w, s.binWidth)
	w.RawString(`,"entries":`)
	writeFloat(w, s.entries)
	w.RawString(`,"bins:type":`)
	w.String(s.contentType)
	w.RawString(`,"bins":{`)
	first := true
	s.bins.Ascend(func(i int64, v Aggregator) bool {
		if !first {
			w.RawByte(',')
		}
		first = false
		w.String(strconv.FormatInt(i, 10))
		w.RawByte(':')
		v.writeFragment(w, false)
		return true
	})
	w.RawByte('}')
	w.RawString(`,"nanflow:type":`)
	w.String(s.nanflow.FactoryTag())
	w.RawString(`,"nanflow":`)
	s.nanflow.writeFragment(w, false)
	w.RawString(`,"origin":`)
	writeFloat(w, s.origin)
	if !suppressName {
		writeName(w, s.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("SparselyBin", parseSparselyBinFragment)
}

func parseSparselyBinFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	required := []string{"binWidth", "entries", "bins:type", "bins", "nanflow:type", "nanflow", "origin"}
	if err := requireFields(fields, "SparselyBin", required, "name"); err != nil {
		return nil, err
	}
	binWidth, err := readFloat(fields["binWidth"], "SparselyBin.binWidth")
	if err != nil {
		return nil, err
	}
	if binWidth <= 0.0 {
		return nil, validationErrorf("SparselyBin binWidth (%v) must be greater than zero", binWidth)
	}
	entries, err := readFloat(fields["entries"], "SparselyBin.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("SparselyBin entries (%v) cannot be negative", entries)
	}
	origin, err := readFloat(fields["origin"], "SparselyBin.origin")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "SparselyBin.name")
	if err != nil {
		return nil, err
	}
	contentType, err := readString(fields["bins:type"], "SparselyBin.bins:type")
	if err != nil {
		return nil, err
	}

	bins := ordmap.New[Aggregator]()
	binFields, err := readFields(fields["bins"])
	if err != nil {
		return nil, wrapJSONFormat(err, "SparselyBin.bins")
	}
	for key, raw := range binFields {
		index, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, jsonFormatErrorf("SparselyBin.bins key %q must be an integer", key)
		}
		sub, err := fromJSONFragment(contentType, raw, "")
		if err != nil {
			return nil, err
		}
		bins.Set(index, sub)
	}

	nanflow, err := parseFlow(fields, "SparselyBin", "nanflow")
	if err != nil {
		return nil, err
	}

	return &SparselyBin{
		binWidth:    binWidth,
		origin:      origin,
		quantity:    namedQuantity(resolveName(name, nameFromParent)),
		contentType: contentType,
		entries:     entries,
		bins:        bins,
		nanflow:     nanflow,
	}, nil
}
