// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/mailru/easyjson/jlexer"
)

// fragmentParser deserializes one aggregator's "data" fragment.
// nameFromParent is the quantity name, if any, that a containing
// aggregator has already promoted to a sibling key (e.g. Bin's
// "values:name") — it is used only when the fragment itself carries
// no "name" field, matching original_source's fromJsonFragment(json,
// nameFromParent) convention.
type fragmentParser func(data []byte, nameFromParent string) (Aggregator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]fragmentParser{}
	logger     log.Logger = log.NewNopLogger()
)

// SetLogger overrides the package's diagnostic logger, nil-safe
// default log.NewNopLogger(). Logging here is purely diagnostic: it
// never changes FromJSON's return value.
func SetLogger(l log.Logger) {
	if l == nil {
		l = log.NewNopLogger()
	}
	registryMu.Lock()
	logger = l
	registryMu.Unlock()
}

// register adds a factory tag to the process-wide registry. Called
// from each primitive's package-level init().
func register(tag string, parse fragmentParser) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := registry[tag]; exists {
		level.Warn(logger).Log("msg", "re-registering factory tag", "tag", tag)
	}
	registry[tag] = parse
	level.Debug(logger).Log("msg", "registered factory", "tag", tag)
}

func lookup(tag string) (fragmentParser, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	p, ok := registry[tag]
	return p, ok
}

// fromJSONFragment dispatches a {"type":"...", "data": ...} fragment
// already split into its parts to the registered parser for typ.
func fromJSONFragment(typ string, data []byte, nameFromParent string) (Aggregator, error) {
	parse, ok := lookup(typ)
	if !ok {
		level.Warn(logger).Log("msg", "unrecognized container type", "type", typ)
		return nil, unknownTypeErrorf("unrecognized container (is it a custom container that hasn't been registered?): %s", typ)
	}
	return parse(data, nameFromParent)
}

// FromJSON parses a canonical {"type": "...", "data": ...} document
// and dispatches it to the matching registered factory.
func FromJSON(data []byte) (Aggregator, error) {
	l := &jlexer.Lexer{Data: data}
	l.Delim('{')
	var typ string
	var dataRaw []byte
	sawType, sawData := false, false
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		switch key {
		case "type":
			typ = l.String()
			sawType = true
		case "data":
			dataRaw = l.Raw()
			sawData = true
		default:
			l.Raw()
		}
		l.WantComma()
	}
	l.Delim('}')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("invalid top-level JSON: %v", err)
	}
	if !sawType || !sawData {
		return nil, jsonFormatErrorf(`top-level document must have exactly "type" and "data" keys`)
	}
	return fromJSONFragment(typ, dataRaw, "")
}

// fromJSONFragmentTyped parses a nested {"type":..., "data":...}
// sub-document. Most containers (Select, Fraction, Label, ...) instead
// dispatch their children through a sibling "type" key. UntypedLabel
// is the only caller: Branch does not nest full envelopes, it writes
// and reads each child as a one-key {"<type>": <fragment>} object.
func fromJSONFragmentTyped(raw []byte, nameFromParent string) (Aggregator, error) {
	fields, err := readFields(raw)
	if err != nil {
		return nil, err
	}
	typRaw, ok := fields["type"]
	if !ok {
		return nil, jsonFormatErrorf(`expected a nested {"type":...,"data":...} object`)
	}
	typ, err := readString(typRaw, "type")
	if err != nil {
		return nil, err
	}
	dataRaw, ok := fields["data"]
	if !ok {
		return nil, jsonFormatErrorf(`expected a nested {"type":...,"data":...} object`)
	}
	return fromJSONFragment(typ, dataRaw, nameFromParent)
}
