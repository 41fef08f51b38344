// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/pdiddy/paper-analyzer/pkg/types"
)

// fencePattern matches the first fenced block, optionally tagged json.
var fencePattern = regexp.MustCompile("(?is)```(?:json)?[ \\t]*\\r?\\n?(.*?)```")

// ExtractPayload returns the inner text of the first fenced block in reply,
// or the whole trimmed reply when there is none.
func ExtractPayload(reply string) string {
	if m := fencePattern.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(reply)
}

// object is a decoded JSON object with typed accessors that report failures
// as *Error values for one stage.
type object struct {
	stage  types.StageName
	fields map[string]any
}

// decodeObject extracts the payload of reply and decodes it as a JSON object.
func decodeObject(stage types.StageName, reply string) (object, error) {
	payload := ExtractPayload(reply)
	if payload == "" {
		return object{}, &Error{Stage: stage, Kind: ErrMalformed, Value: "empty reply"}
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return object{}, &Error{Stage: stage, Kind: ErrMalformed, Err: err}
	}
	if dec.More() {
		return object{}, &Error{Stage: stage, Kind: ErrMalformed, Value: "trailing data after JSON object"}
	}
	fields, ok := v.(map[string]any)
	if !ok {
		return object{}, &Error{Stage: stage, Kind: ErrMalformed, Value: fmt.Sprintf("JSON %s, want object", jsonKind(v))}
	}
	return object{stage: stage, fields: fields}, nil
}

func (o object) has(key string) bool {
	v, ok := o.fields[key]
	return ok && v != nil
}

// requireKeys returns ErrMissingField for the first absent key.
func (o object) requireKeys(keys ...string) error {
	for _, k := range keys {
		if !o.has(k) {
			return &Error{Stage: o.stage, Kind: ErrMissingField, Field: k}
		}
	}
	return nil
}

// number reads key as a JSON number or a numeric string and checks it lies
// within [lo, hi].
func (o object) number(key string, lo, hi float64) (float64, error) {
	f, err := toFloat(o.fields[key])
	if err != nil {
		return 0, &Error{Stage: o.stage, Kind: ErrShape, Field: key, Value: describe(o.fields[key])}
	}
	if !(f >= lo && f <= hi) {
		return 0, &Error{Stage: o.stage, Kind: ErrOutOfRange, Field: key,
			Value: fmt.Sprintf("%v, want %v..%v", f, lo, hi)}
	}
	return f, nil
}

// str reads key as a string. Absent keys yield "".
func (o object) str(key string) (string, error) {
	v, ok := o.fields[key]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", &Error{Stage: o.stage, Kind: ErrShape, Field: key, Value: describe(v)}
	}
	return strings.TrimSpace(s), nil
}

// requiredStr is str that also rejects blank values.
func (o object) requiredStr(key string) (string, error) {
	s, err := o.str(key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", &Error{Stage: o.stage, Kind: ErrMissingField, Field: key, Value: "empty string"}
	}
	return s, nil
}

// stringList reads key as an array of strings. Absent keys yield an empty
// non-nil slice.
func (o object) stringList(key string) ([]string, error) {
	v, ok := o.fields[key]
	if !ok || v == nil {
		return []string{}, nil
	}
	arr, ok := v.([]any)
	if !ok {
		return nil, &Error{Stage: o.stage, Kind: ErrShape, Field: key, Value: describe(v)}
	}
	out := make([]string, 0, len(arr))
	for i, item := range arr {
		s, ok := item.(string)
		if !ok {
			return nil, &Error{Stage: o.stage, Kind: ErrShape, Field: fmt.Sprintf("%s[%d]", key, i), Value: describe(item)}
		}
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case string:
		return strconv.ParseFloat(strings.TrimSpace(n), 64)
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case json.Number:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// describe renders a decoded value for error messages.
func describe(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case json.Number:
		return t.String()
	default:
		return jsonKind(v)
	}
}
