// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// BagFunc extracts a Bag key from a datum: a float64, a string, or a
// []float64 (a fixed-length numeric vector). Any other return value
// is a ValidationError at fill time.
type BagFunc func(datum any) (any, error)

// bagQuantity is Quantity's any-valued analogue: Bag's fill rule can
// return three different Go kinds, so it cannot share Quantity's
// float64-only Eval.
type bagQuantity struct {
	name string
	fn   BagFunc
}

func (q *bagQuantity) clone() *bagQuantity {
	if q == nil {
		return nil
	}
	return &bagQuantity{name: q.name, fn: q.fn}
}

type bagKeyKind int

const (
	bagKeyNumber bagKeyKind = iota
	bagKeyString
	bagKeyVector
)

type bagEntry struct {
	kind   bagKeyKind
	num    float64
	str    string
	vec    []float64
	weight float64
}

// Bag tallies weight by distinct observed value — a histogram whose
// bins are the data themselves rather than numeric ranges. Useful
// when the domain of quantity(datum) is small and discrete (including
// non-numeric values), unlike Categorize which always buckets by
// string.
type Bag struct {
	quantity *bagQuantity
	entries  float64
	values   map[string]*bagEntry
	vecLen   int
}

// NewBag returns an empty, fillable Bag over quantity.
func NewBag(quantity BagFunc) *Bag {
	return &Bag{quantity: &bagQuantity{fn: quantity}, values: map[string]*bagEntry{}}
}

func (b *Bag) FactoryTag() string     { return "Bag" }
func (b *Bag) Entries() float64       { return b.entries }
func (b *Bag) Children() []Aggregator { return nil }

func (b *Bag) Zero() Aggregator {
	return &Bag{quantity: b.quantity.clone(), values: map[string]*bagEntry{}}
}

func (b *Bag) Merge(other Aggregator) (Aggregator, error) {
	o, ok := other.(*Bag)
	if !ok {
		return nil, structureMismatchf("cannot merge Bag with %s", other.FactoryTag())
	}
	out := &Bag{
		quantity: b.quantity.clone(),
		entries:  b.entries + o.entries,
		values:   make(map[string]*bagEntry, len(b.values)+len(o.values)),
		vecLen:   b.vecLen,
	}
	if out.vecLen == 0 {
		out.vecLen = o.vecLen
	}
	for k, v := range b.values {
		cp := *v
		out.values[k] = &cp
	}
	for k, v := range o.values {
		if existing, ok := out.values[k]; ok {
			cp := *existing
			cp.weight += v.weight
			out.values[k] = &cp
		} else {
			cp := *v
			out.values[k] = &cp
		}
	}
	return out, nil
}

func encodeVector(vec []float64) string {
	parts := make([]string, len(vec))
	for i, x := range vec {
		parts[i] = strconv.FormatFloat(x, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func (b *Bag) Fill(datum any, weight float64) error {
	if weight <= 0.0 {
		return nil
	}
	if b.quantity == nil || b.quantity.fn == nil {
		return errFillPastTense
	}
	raw, err := b.quantity.fn(datum)
	if err != nil {
		return err
	}

	var entry bagEntry
	var mapKey string
	switch v := raw.(type) {
	case float64:
		entry = bagEntry{kind: bagKeyNumber, num: v}
		mapKey = "n:" + strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		entry = bagEntry{kind: bagKeyString, str: v}
		mapKey = "s:" + v
	case []float64:
		if b.vecLen == 0 {
			b.vecLen = len(v)
		} else if len(v) != b.vecLen {
			return validationErrorf("Bag vector key has length %d, expected %d", len(v), b.vecLen)
		}
		vec := append([]float64(nil), v...)
		entry = bagEntry{kind: bagKeyVector, vec: vec}
		mapKey = "v:" + encodeVector(vec)
	default:
		return validationErrorf("fill rule for Bag must return a float64, string, or []float64, not %T", raw)
	}

	b.entries += weight
	if existing, ok := b.values[mapKey]; ok {
		existing.weight += weight
	} else {
		entry.weight = weight
		b.values[mapKey] = &entry
	}
	return nil
}

func bagKeyLess(a, b *bagEntry) bool {
	if a.kind != b.kind {
		return a.kind < b.kind
	}
	switch a.kind {
	case bagKeyNumber:
		return a.num < b.num
	case bagKeyString:
		return a.str < b.str
	default:
		n := len(a.vec)
		if len(b.vec) < n {
			n = len(b.vec)
		}
		for i := 0; i < n; i++ {
			if a.vec[i] != b.vec[i] {
				return a.vec[i] < b.vec[i]
			}
		}
		return len(a.vec) < len(b.vec)
	}
}

func (b *Bag) sortedEntries() []*bagEntry {
	out := make([]*bagEntry, 0, len(b.values))
	for _, v := range b.values {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return bagKeyLess(out[i], out[j]) })
	return out
}

func (b *Bag) writeFragment(w *jwriter.Writer, suppressName bool) {
	w.RawByte('{')
	w.RawString(`"entries":`)
	writeFloat(w, b.entries)
	w.RawString(`,"values":[`)
	for i, e := range b.sortedEntries() {
		if i > 0 {
			w.RawByte(',')
		}
		w.RawByte('{')
		w.RawString(`"n":`)
		writeFloat(w, e.weight)
		w.RawString(`,"v":`)
		switch e.kind {
		case bagKeyNumber:
			writeFloat(w, e.num)
		case bagKeyString:
			w.String(e.str)
		case bagKeyVector:
			w.RawByte('[')
			for j, x := range e.vec {
				if j > 0 {
					w.RawByte(',')
				}
				writeFloat(w, x)
			}
			w.RawByte(']')
		}
		w.RawByte('}')
	}
	w.RawByte(']')
	if !suppressName {
		writeName(w, b.quantity.name)
	}
	w.RawByte('}')
}

func init() {
	register("Bag", parseBagFragment)
}

func parseBagFragment(data []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(data)
	if err != nil {
		return nil, err
	}
	if err := requireFields(fields, "Bag", []string{"entries", "values"}, "name"); err != nil {
		return nil, err
	}
	entries, err := readFloat(fields["entries"], "Bag.entries")
	if err != nil {
		return nil, err
	}
	if entries < 0.0 {
		return nil, validationErrorf("Bag entries (%v) cannot be negative", entries)
	}
	name, err := readOptionalName(fields, "Bag.name")
	if err != nil {
		return nil, err
	}

	out := &Bag{quantity: &bagQuantity{name: resolveName(name, nameFromParent)}, entries: entries, values: map[string]*bagEntry{}}

	l := &jlexer.Lexer{Data: fields["values"]}
	if l.IsNull() {
		l.Skip()
	} else {
		l.Delim('[')
		for !l.IsDelim(']') {
			raw := l.Raw()
			if err := l.Error(); err != nil {
				return nil, jsonFormatErrorf("Bag.values: %v", err)
			}
			entryFields, err := readFields(raw)
			if err != nil {
				return nil, err
			}
			if err := requireFields(entryFields, "Bag.values[]", []string{"n", "v"}); err != nil {
				return nil, err
			}
			weight, err := readFloat(entryFields["n"], "Bag.values[].n")
			if err != nil {
				return nil, err
			}
			vRaw := entryFields["v"]
			var entry bagEntry
			var mapKey string
			switch {
			case len(vRaw) > 0 && vRaw[0] == '"':
				s, err := readString(vRaw, "Bag.values[].v")
				if err != nil {
					return nil, err
				}
				entry = bagEntry{kind: bagKeyString, str: s, weight: weight}
				mapKey = "s:" + s
			case len(vRaw) > 0 && vRaw[0] == '[':
				vec, err := readFloatArray(vRaw, "Bag.values[].v")
				if err != nil {
					return nil, err
				}
				if out.vecLen == 0 {
					out.vecLen = len(vec)
				} else if len(vec) != out.vecLen {
					return nil, validationErrorf("Bag vector key has length %d, expected %d", len(vec), out.vecLen)
				}
				entry = bagEntry{kind: bagKeyVector, vec: vec, weight: weight}
				mapKey = "v:" + encodeVector(vec)
			default:
				n, err := readFloat(vRaw, "Bag.values[].v")
				if err != nil {
					return nil, err
				}
				entry = bagEntry{kind: bagKeyNumber, num: n, weight: weight}
				mapKey = "n:" + strconv.FormatFloat(n, 'g', -1, 64)
			}
			out.values[mapKey] = &entry
			l.WantComma()
		}
		l.Delim(']')
		if err := l.Error(); err != nil {
			return nil, jsonFormatErrorf("Bag.values: %v", err)
		}
	}
	return out, nil
}

func readFloatArray(raw []byte, context string) ([]float64, error) {
	l := &jlexer.Lexer{Data: raw}
	var out []float64
	l.Delim('[')
	for !l.IsDelim(']') {
		out = append(out, l.Float64())
		l.WantComma()
	}
	l.Delim(']')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("%s: %v", context, fmt.Errorf("%w", err))
	}
	return out, nil
}
