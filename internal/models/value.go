// Package models defines the data structures for the health eligibility engine.
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// ValueKind identifies the underlying type of a patient response value.
type ValueKind string

const (
	KindString ValueKind = "string"
	KindNumber ValueKind = "number"
	KindBool   ValueKind = "bool"
	KindList   ValueKind = "list"
)

// Value is one patient response value. The conversational layer extracts
// responses from free text, so the same field may arrive as a string on one
// turn and a boolean or number on the next. Every coercion on Value is total:
// requirement matchers never see a panic or an error from a mismatched type.
type Value struct {
	kind ValueKind
	str  string
	num  float64
	b    bool
	list []string
}

// StringValue wraps a string response.
func StringValue(s string) Value {
	return Value{kind: KindString, str: s}
}

// NumberValue wraps a numeric response.
func NumberValue(n float64) Value {
	return Value{kind: KindNumber, num: n}
}

// BoolValue wraps a boolean response.
func BoolValue(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// ListValue wraps a list-of-strings response.
func ListValue(items ...string) Value {
	return Value{kind: KindList, list: items}
}

// ValueOf converts an arbitrary decoded value into a Value. Unknown types
// fall back to their fmt representation so the conversion never fails.
func ValueOf(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return StringValue("")
	case Value:
		return t
	case bool:
		return BoolValue(t)
	case float64:
		return NumberValue(t)
	case float32:
		return NumberValue(float64(t))
	case int:
		return NumberValue(float64(t))
	case int64:
		return NumberValue(float64(t))
	case string:
		return StringValue(t)
	case []string:
		return ListValue(t...)
	case []interface{}:
		items := make([]string, 0, len(t))
		for _, item := range t {
			items = append(items, ValueOf(item).Text())
		}
		return ListValue(items...)
	default:
		return StringValue(fmt.Sprintf("%v", t))
	}
}

// Kind returns the underlying kind of the value.
func (v Value) Kind() ValueKind {
	if v.kind == "" {
		return KindString
	}
	return v.kind
}

// Text returns the string form of the value. Lists are joined with ", ".
func (v Value) Text() string {
	switch v.Kind() {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindList:
		return strings.Join(v.list, ", ")
	default:
		return v.str
	}
}

// Number attempts a numeric reading of the value. String values are parsed;
// booleans read as 0 or 1. The second return reports whether a numeric
// reading exists. Parse failures report false, never an error.
func (v Value) Number() (float64, bool) {
	switch v.Kind() {
	case KindNumber:
		return v.num, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindString:
		n, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Truthy reports whether the value reads as an affirmative answer.
// Unrecognized non-empty strings count as affirmative, matching the loose
// extraction done by the conversational layer.
func (v Value) Truthy() bool {
	switch v.Kind() {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindList:
		return len(v.list) > 0
	default:
		s := strings.ToLower(strings.TrimSpace(v.str))
		switch s {
		case "", "false", "no", "n", "0", "none":
			return false
		default:
			return true
		}
	}
}

// IsEmpty reports whether the trimmed string form of the value is empty.
func (v Value) IsEmpty() bool {
	return strings.TrimSpace(v.Text()) == ""
}

// MarshalJSON renders the value in its native JSON type.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind() {
	case KindNumber:
		return json.Marshal(v.num)
	case KindBool:
		return json.Marshal(v.b)
	case KindList:
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.str)
	}
}

// UnmarshalJSON accepts any JSON scalar or string array.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// Responses is the accumulating patient response state, keyed by field name.
// It is owned by the conversation layer; the engine only reads it.
type Responses map[string]Value

// Merge folds updates into the response state, field by field. Existing
// fields absent from the update are kept.
func (r Responses) Merge(updates Responses) {
	for k, v := range updates {
		r[k] = v
	}
}

// Clone returns an independent copy of the response state, safe to read
// after the original is handed back to a concurrent writer.
func (r Responses) Clone() Responses {
	out := make(Responses, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Haystack concatenates the string form of every answered value into one
// lowercase string for symptom keyword scanning. Negative booleans and
// empty values are skipped so an explicit "no" never matches a keyword.
func (r Responses) Haystack() string {
	var b strings.Builder
	for _, v := range r {
		if v.IsEmpty() {
			continue
		}
		if v.Kind() == KindBool && !v.Truthy() {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(strings.ToLower(v.Text()))
	}
	return b.String()
}

// ResponsesFromJSON decodes a JSON object of heterogeneous values.
func ResponsesFromJSON(data []byte) (Responses, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode responses: %w", err)
	}
	out := make(Responses, len(raw))
	for k, v := range raw {
		out[k] = ValueOf(v)
	}
	return out, nil
}
