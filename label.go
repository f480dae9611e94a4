// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mailru/easyjson/jwriter"
)

type labelPair struct {
	label string
	value Aggregator
}

// Label bundles same-typed sub-aggregators under string names; every
// fill is broadcast to all of them. For mixed sub-types use
// UntypedLabel.
type Label struct {
	entries float64
	pairs   []labelPair // sorted by label
}

// NewLabel returns an empty, fillable Label over the given pairs (at
// least one, all the same primitive type). The sub-aggregators are
// held as given, not copied.
func NewLabel(pairs map[string]Aggregator) (*Label, error) {
	sorted, err := sortedLabelPairs("Label", pairs)
	if err != nil {
		return nil, err
	}
	contentType := sorted[0].value.FactoryTag()
	for _, p := range sorted {
		if p.value.FactoryTag() != contentType {
			return nil, validationErrorf("all Label values must have the same type (%s vs %s)", contentType, p.value.FactoryTag())
		}
	}
	return &Label{pairs: sorted}, nil
}

func sortedLabelPairs(context string, pairs map[string]Aggregator) ([]labelPair, error) {
	if len(pairs) < 1 {
		return nil, validationErrorf("at least one %s pair required", context)
	}
	sorted := make([]labelPair, 0, len(pairs))
	for k, v := range pairs {
		sorted = append(sorted, labelPair{label: k, value: v})
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].label < sorted[j].label })
	return sorted, nil
}

func (l *Label) FactoryTag() string { return "Label" }
func (l *Label) Entries() float64   { return l.entries }

// Size is the number of labeled sub-aggregators.
func (l *Label) Size() int { return len(l.pairs) }

// Keys returns the labels in sorted order.
func (l *Label) Keys() []string {
	out := make([]string, len(l.pairs))
	for i, p := range l.pairs {
		out[i] = p.label
	}
	return out
}

// Get returns the sub-aggregator under label, if present.
func (l *Label) Get(label string) (Aggregator, bool) {
	i := sort.Search(len(l.pairs), func(i int) bool { return l.pairs[i].label >= label })
	if i < len(l.pairs) && l.pairs[i].label == label {
		return l.pairs[i].value, true
	}
	return nil, false
}

func (l *Label) Children() []Aggregator {
	out := make([]Aggregator, len(l.pairs))
	for i, p := range l.pairs {
		out[i] = p.value
	}
	return out
}

func (l *Label) Zero() Aggregator {
	pairs := make([]labelPair, len(l.pairs))
	for i, p := range l.pairs {
		pairs[i] = labelPair{label: p.label, value: p.value.Zero()}
	}
	return &Label{pairs: pairs}
}

func mergeLabelPairs(context string, a, b []labelPair) ([]labelPair, error) {
	if len(a) != len(b) {
		return nil, structureMismatchf("cannot merge %ss because keys differ: %s vs %s", context, joinLabels(a), joinLabels(b))
	}
	out := make([]labelPair, len(a))
	for i := range a {
		if a[i].label != b[i].label {
			return nil, structureMismatchf("cannot merge %ss because keys differ: %s vs %s", context, joinLabels(a), joinLabels(b))
		}
		m, err := a[i].value.Merge(b[i].value)
		if err != nil {
			return nil, wrapStructureMismatch(err, fmt.Sprintf("%s.data[%q]", context, a[i].label))
		}
		out[i] = labelPair{label: a[i].label, value: m}
	}
	return out, nil
}

func joinLabels(pairs []labelPair) string {
	labels := make([]string, len(pairs))
	for i, p := range pairs {
		labels[i] = p.label
	}
	return strings.Join(labels, ", ")
}

func (l *Label) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Label)
	if !ok {
		return nil, structureMismatchf("cannot merge Label with %s", other.FactoryTag())
	}
	pairs, err := mergeLabelPairs("Label", l.pairs, o.pairs)
	if err != nil {
		return nil, err
	}
	return &Label{entries: l.entries + o.entries, pairs: pairs}, nil
}

func (l *Label) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	for _, p := range l.pairs {
		if err := p.value.Fill(datum, weight); err != nil {
			return err
		}
	}
	l.entries += weight
	return nil
}

func (l *Label) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, l.entries)
	w.RawString(`,"type":`)
	w.String(l.pairs[0].value.FactoryTag())
	w.RawString(`,"data":{`)
	for i, p := range l.pairs {
		if i > 0 {
			w.RawByte(',')
		}
		w.String(p.label)
		w.RawByte(':')
		p.value.writeFragment(w, false)
	}
	w.RawString(`}}`)
}

func init() {
	register("Label", parseLabelFragment)
}

func parseLabelFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Label", []string{"entries", "type", "data"}); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Label.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Label entries (%v) cannot be negative", entries)
	}
	contentType, err := readString(fields["type"], "Label.type")
	if err != nil {
		return nil, err
	}
	dataFields, err := readFields(fields["data"])
	if err != nil {
		return nil, wrapJSONFormat(err, "Label.data")
	}
	pairs := make(map[string]Aggregator, len(dataFields))
	for k, raw := range dataFields {
		sub, err := fromJSONFragment(contentType, raw, "")
		if err != nil {
			return nil, err
		}
		pairs[k] = sub
	}
	sorted, err := sortedLabelPairs("Label", pairs)
	if err != nil {
		return nil, err
	}
	return &Label{entries: entries, pairs: sorted}, nil
}
