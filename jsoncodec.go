// Copyright 2025 V Kontakte LLC
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package histogrammar

import (
	"math"
	"strconv"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// writeFloat emits x the way original_source's floatToJson does:
// NaN/+Inf/-Inf as the quoted strings "nan"/"inf"/"-inf", everything
// else as a JSON number.
func writeFloat(w *jwriter.Writer, x float64) {
	switch {
	case math.IsNaN(x):
		w.String("nan")
	case math.IsInf(x, 1):
		w.String("inf")
	case math.IsInf(x, -1):
		w.String("-inf")
	default:
		w.Float64(x)
	}
}

// writeName appends a "name" field iff name is non-empty, mirroring
// original_source's maybeAdd(json, name=quantity.name).
func writeName(w *jwriter.Writer, name string) {
	if name != "" {
		w.RawString(`,"name":`)
		w.String(name)
	}
}

// readFields parses the next JSON value (which must be an object)
// into a map from key to that key's raw, unparsed value, so each
// primitive's fromJsonFragment can pull the keys it expects in any
// order and report JSONFormatError on whatever is missing or
// malformed, matching original_source's hasKeys validation without
// original_source's exact key-order assumptions.
func readFields(data []byte) (map[string][]byte, error) {
	l := &jlexer.Lexer{Data: data}
	if l.IsNull() {
		l.Skip()
		return nil, nil
	}
	fields := map[string][]byte{}
	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		fields[key] = l.Raw()
		l.WantComma()
	}
	l.Delim('}')
	if err := l.Error(); err != nil {
		return nil, jsonFormatErrorf("invalid JSON object: %v", err)
	}
	return fields, nil
}

// requireFields checks that fields contains exactly the required
// keys plus zero or more of the optional keys, matching
// original_source's hasKeys(required, optional).
func requireFields(fields map[string][]byte, context string, required []string, optional ...string) error {
	allowed := map[string]bool{}
	for _, k := range required {
		allowed[k] = true
		if _, ok := fields[k]; !ok {
			return jsonFormatErrorf("%s: missing required key %q", context, k)
		}
	}
	for _, k := range optional {
		allowed[k] = true
	}
	for k := range fields {
		if !allowed[k] {
			return jsonFormatErrorf("%s: unexpected key %q", context, k)
		}
	}
	return nil
}

// readFloat parses a plain JSON number field (not one of the
// nan/inf-capable fields).
func readFloat(raw []byte, context string) (float64, error) {
	l := &jlexer.Lexer{Data: raw}
	f := l.Float64()
	if err := l.Error(); err != nil {
		return 0, jsonFormatErrorf("%s: expected a number: %v", context, err)
	}
	return f, nil
}

// readSpecialFloat parses a field that may carry the quoted sentinels
// "nan"/"inf"/"-inf" in addition to ordinary JSON numbers.
func readSpecialFloat(raw []byte, context string) (float64, error) {
	if len(raw) == 0 {
		return 0, jsonFormatErrorf("%s: empty value", context)
	}
	if raw[0] == '"' {
		l := &jlexer.Lexer{Data: raw}
		s := l.String()
		if err := l.Error(); err != nil {
			return 0, jsonFormatErrorf("%s: %v", context, err)
		}
		switch s {
		case "nan":
			return math.NaN(), nil
		case "inf":
			return math.Inf(1), nil
		case "-inf":
			return math.Inf(-1), nil
		default:
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return 0, jsonFormatErrorf("%s: unrecognized string %q", context, s)
			}
			return f, nil
		}
	}
	return readFloat(raw, context)
}

// readString parses a plain JSON string field.
func readString(raw []byte, context string) (string, error) {
	l := &jlexer.Lexer{Data: raw}
	s := l.String()
	if err := l.Error(); err != nil {
		return "", jsonFormatErrorf("%s: expected a string: %v", context, err)
	}
	return s, nil
}

// readOptionalName returns fields["name"] as a string, or "" if the
// key is absent.
func readOptionalName(fields map[string][]byte, context string) (string, error) {
	raw, ok := fields["name"]
	if !ok {
		return "", nil
	}
	return readString(raw, context)
}

// resolveName mirrors original_source's
// `name if name is not None else nameFromParent` inheritance used by
// every nested fromJsonFragment.
func resolveName(name, nameFromParent string) string {
	if name != "" {
		return name
	}
	return nameFromParent
}
