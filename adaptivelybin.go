// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"math"

	"github.com/mailru/easyjson/jwriter"

	"github.com/VKCOM/histogrammar/internal/clustering"
)

// AdaptivelyBin clusters a numeric quantity in one pass: every
// distinct value starts its own bin, and once the number of bins
// exceeds the cap, the two adjacent bins with the smallest blended
// gap are merged. tailDetail in [0, 1] biases which pairs merge
// first: 0 merges the smallest absolute gap anywhere; higher values
// divide more of each gap by (1 + the pair's distance from the middle
// of the observed range), so pairs far from the middle merge sooner.
type AdaptivelyBin struct {
	quantity    *Quantity
	value       Aggregator // template; nil after deserialization
	contentType string
	clustering  *clustering.Tree
	nanflow     Aggregator
}

// clusteringOps adapts Aggregator's merge and clone to the clustering
// tree's value callbacks.
func clusteringOps() clustering.Ops {
	return clustering.Ops{
		Merge: func(a, b clustering.Value) (clustering.Value, error) {
			return a.(Aggregator).Merge(b.(Aggregator))
		},
		Clone: func(v clustering.Value) (clustering.Value, error) {
			return cloneAggregator(v.(Aggregator))
		},
	}
}

// NewAdaptivelyBin returns an empty, fillable AdaptivelyBin capped at
// num clusters, with a Count nanflow. DefaultAdaptiveBinCap and
// DefaultTailDetail are the conventional parameters.
func NewAdaptivelyBin(num int, tailDetail float64, quantity *Quantity, value Aggregator) (*AdaptivelyBin, error) {
	return NewAdaptivelyBinWithNanflow(num, tailDetail, quantity, value, NewCount())
}

// NewAdaptivelyBinWithNanflow is NewAdaptivelyBin with an explicit
// NaN sink aggregator.
func NewAdaptivelyBinWithNanflow(num int, tailDetail float64, quantity *Quantity, value, nanflow Aggregator) (*AdaptivelyBin, error) {
	if num < 2 {
		return nil, validationErrorf("number of bins (%d) must be at least two", num)
	}
	if tailDetail < 0.0 || tailDetail > 1.0 {
		return nil, validationErrorf("tailDetail parameter (%v) must be between 0.0 and 1.0 inclusive", tailDetail)
	}
	return &AdaptivelyBin{
		quantity:    quantity,
		value:       value,
		contentType: value.FactoryTag(),
		clustering:  clustering.New(num, tailDetail, clusteringOps()),
		nanflow:     nanflow.Zero(),
	}, nil
}

func (a *AdaptivelyBin) FactoryTag() string  { return "AdaptivelyBin" }
func (a *AdaptivelyBin) Entries() float64    { return a.clustering.Entries }
func (a *AdaptivelyBin) Num() int            { return a.clustering.Cap }
func (a *AdaptivelyBin) TailDetail() float64 { return a.clustering.TailDetail }
func (a *AdaptivelyBin) Min() float64        { return a.clustering.Min }
func (a *AdaptivelyBin) Max() float64        { return a.clustering.Max }
func (a *AdaptivelyBin) Nanflow() Aggregator { return a.nanflow }

// Cluster is one adaptive bin: its center and its sub-aggregator.
type Cluster struct {
	Center float64
	Value  Aggregator
}

// Clusters returns the current bins in ascending center order.
func (a *AdaptivelyBin) Clusters() []Cluster {
	cs := a.clustering.Clusters()
	out := make([]Cluster, len(cs))
	for i, c := range cs {
		out[i] = Cluster{Center: c.Center, Value: c.Value.(Aggregator)}
	}
	return out
}

func (a *AdaptivelyBin) Children() []Aggregator {
	cs := a.clustering.Clusters()
	out := make([]Aggregator, 0, len(cs)+1)
	out = append(out, a.nanflow)
	for _, c := range cs {
		out = append(out, c.Value.(Aggregator))
	}
	return out
}

func (a *AdaptivelyBin) Zero() Aggregator {
	return &AdaptivelyBin{
		quantity:    a.quantity.clone(),
		value:       a.value,
		contentType: a.contentType,
		clustering:  clustering.New(a.clustering.Cap, a.clustering.TailDetail, clusteringOps()),
		nanflow:     a.nanflow.Zero(),
	}
}

func (a *AdaptivelyBin) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*AdaptivelyBin)
	if !ok {
		return nil, structureMismatchf("cannot merge AdaptivelyBin with %s", other.FactoryTag())
	}
	if a.clustering.Cap != o.clustering.Cap {
		return nil, structureMismatchf("cannot merge AdaptivelyBins because numbers of bins differ (%d vs %d)", a.clustering.Cap, o.clustering.Cap)
	}
	if a.clustering.TailDetail != o.clustering.TailDetail {
		return nil, structureMismatchf("cannot merge AdaptivelyBins because tailDetail parameters differ (%v vs %v)", a.clustering.TailDetail, o.clustering.TailDetail)
	}
	nanflow, err := a.nanflow.Merge(o.nanflow)
	if err != nil {
		return nil, wrapStructureMismatch(err, "AdaptivelyBin.nanflow")
	}
	merged, err := a.clustering.Merge(o.clustering)
	if err != nil {
		return nil, wrapStructureMismatch(err, "AdaptivelyBin.bins")
	}
	return &AdaptivelyBin{
		quantity:    a.quantity.clone(),
		value:       a.value,
		contentType: a.contentType,
		clustering:  merged,
		nanflow:     nanflow,
	}, nil
}

func (a *AdaptivelyBin) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	q, err := a.quantity.Eval(datum)
	if err != nil {
		return err
	}
	if math.IsNaN(q) {
		if err := a.nanflow.Fill(datum, weight); err != nil {
			return err
		}
		a.clustering.Entries += weight
		return nil
	}
	if a.value == nil {
		return errFillPastTense
	}
	if existing, ok := a.clustering.Get(q); ok {
		if err := existing.(Aggregator).Fill(datum, weight); err != nil {
			return err
		}
	} else {
		sub := a.value.Zero()
		if err := sub.Fill(datum, weight); err != nil {
			return err
		}
		a.clustering.Put(q, sub)
		// compact against the range of earlier data, then extend it
		if err := a.clustering.Compact(); err != nil {
			return err
		}
	}
	a.clustering.Observe(q, weight)
	return nil
}

func (a *AdaptivelyBin) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, a.clustering.Entries)
	w.RawString(`,"num":`)
	w.Int(a.clustering.Cap)
	w.RawString(`,"bins:type":`)
	w.String(a.contentType)
	w.RawString(`,"bins":[`)
	for i, c := range a.clustering.Clusters() {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawString(`{"center":`)
		writeFloat(w, c.Center)
		w.RawString(`,"value":`)
		c.Value.(Aggregator).writeFragment(w, false)
		w.RawByte('}')
	}
	w.RawByte(']')
	w.RawString(`,"min":`)
	writeFloat(w, a.clustering.Min)
	w.RawString(`,"max":`)
	writeFloat(w, a.clustering.Max)
	w.RawString(`,"nanflow:type":`)
	w.String(a.nanflow.FactoryTag())
	w.RawString(`,"nanflow":`)
	a.nanflow.writeFragment(w, false)
	w.RawString(`,"tailDetail":`)
	writeFloat(w, a.clustering.TailDetail)
	if !suppressName {
		writeName(w, a.quantity.Name())
	}
	w.RawByte('}')
}

func init() {
	register("AdaptivelyBin", parseAdaptivelyBinFragment)
}

func parseAdaptivelyBinFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	required := []string{"entries", "num", "bins:type", "bins", "min", "max", "nanflow:type", "nanflow", "tailDetail"}
	if err := requireFields(fields, "AdaptivelyBin", required, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "AdaptivelyBin.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("AdaptivelyBin entries (%v) cannot be negative", entries)
	}
	numF, err := readFloat(fields["num"], "AdaptivelyBin.num")
	if err != nil {
		return nil, err
	}
	num := int(numF)
	if num < 2 {
		return nil, validationErrorf("AdaptivelyBin num (%d) must be at least two", num)
	}
	tailDetail, err := readFloat(fields["tailDetail"], "AdaptivelyBin.tailDetail")
	if err != nil {
		return nil, err
	}
	if tailDetail < 0.0 || tailDetail > 1.0 {
		return nil, validationErrorf("AdaptivelyBin tailDetail (%v) must be between 0.0 and 1.0 inclusive", tailDetail)
	}
	contentType, err := readString(fields["bins:type"], "AdaptivelyBin.bins:type")
	if err != nil {
		return nil, err
	}
	bins, err := parseCenteredBins(fields["bins"], "AdaptivelyBin.bins", contentType)
	if err != nil {
		return nil, err
	}
	if len(bins) > num {
		return nil, validationErrorf("AdaptivelyBin has more bins (%d) than its cap (%d)", len(bins), num)
	}
	min, err := readSpecialFloat(fields["min"], "AdaptivelyBin.min")
	if err != nil {
		return nil, err
	}
	max, err := readSpecialFloat(fields["max"], "AdaptivelyBin.max")
	if err != nil {
		return nil, err
	}
	nanflow, err := parseFlow(fields, "AdaptivelyBin", "nanflow")
	if err != nil {
		return nil, err
	}
	name, err := readOptionalName(fields, "AdaptivelyBin.name")
	if err != nil {
		return nil, err
	}

	tree := clustering.New(num, tailDetail, clusteringOps())
	for _, b := range bins {
		tree.Put(b.center, b.value)
	}
	tree.Min = min
	tree.Max = max
	tree.Entries = entries
	return &AdaptivelyBin{
		quantity:    namedQuantity(resolveName(name, nameFromParent)),
		contentType: contentType,
		clustering:  tree,
		nanflow:     nanflow,
	}, nil
}
