package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Attribute is one key/value pair of a variant attribute object.
type Attribute struct {
	Key   string
	Value json.RawMessage
}

// Attributes is a variant attribute object that keeps the key order it was
// stored with, so display names are stable across reads.
type Attributes []Attribute

var errAttributesNotObject = errors.New("attributes must be a JSON object")

// ParseAttributes decodes a JSON object. Empty input and JSON null decode to
// an empty set.
func ParseAttributes(raw []byte) (Attributes, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Attributes{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errAttributesNotObject
	}

	attrs := Attributes{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errAttributesNotObject
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}
		attrs = append(attrs, Attribute{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return attrs, nil
}

// DisplayValue renders the attribute values joined by a space, strings
// unquoted, e.g. {"color":"Red","size":42} -> "Red 42".
func (a Attributes) DisplayValue() string {
	parts := make([]string, 0, len(a))
	for _, attr := range a {
		var s string
		if err := json.Unmarshal(attr.Value, &s); err == nil {
			parts = append(parts, s)
			continue
		}
		if string(attr.Value) == "null" {
			continue
		}
		parts = append(parts, string(attr.Value))
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

func (a Attributes) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, attr := range a {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(attr.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if len(attr.Value) == 0 {
			buf.WriteString("null")
			continue
		}
		buf.Write(attr.Value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (a *Attributes) UnmarshalJSON(data []byte) error {
	parsed, err := ParseAttributes(data)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
