package artifact

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
)

// Kind discriminates the JSON value variants.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// Value is a JSON tree that preserves object member order, which the
// standard map-based decoding discards. Translation must re-emit the
// artifact with keys in their original positions so consumers diffing
// artifacts across runs see real changes only.
type Value struct {
	kind    Kind
	boolean bool
	number  json.Number
	str     string
	array   []*Value
	members []Member
}

// Member is one ordered object entry.
type Member struct {
	Key   string
	Value *Value
}

func (v *Value) Kind() Kind { return v.kind }

// StringValue returns the string payload of a string leaf.
func (v *Value) StringValue() string { return v.str }

// SetString replaces the payload of a string leaf.
func (v *Value) SetString(s string) {
	if v.kind == KindString {
		v.str = s
	}
}

// Array returns the elements of an array value.
func (v *Value) Array() []*Value { return v.array }

// Members returns the ordered entries of an object value.
func (v *Value) Members() []Member { return v.members }

// NewString builds a string leaf.
func NewString(s string) *Value { return &Value{kind: KindString, str: s} }

// Parse decodes JSON into an ordered tree. Numbers keep their original
// textual form.
func Parse(raw []byte) (*Value, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	v, err := parseValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return v, nil
}

func parseValue(dec *json.Decoder) (*Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	return parseToken(dec, tok)
}

func parseToken(dec *json.Decoder, tok json.Token) (*Value, error) {
	switch t := tok.(type) {
	case nil:
		return &Value{kind: KindNull}, nil
	case bool:
		return &Value{kind: KindBool, boolean: t}, nil
	case json.Number:
		return &Value{kind: KindNumber, number: t}, nil
	case string:
		return &Value{kind: KindString, str: t}, nil
	case json.Delim:
		switch t {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		}
	}
	return nil, fmt.Errorf("unexpected JSON token %v", tok)
}

func parseObject(dec *json.Decoder) (*Value, error) {
	obj := &Value{kind: KindObject}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("object key is not a string: %v", keyTok)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		obj.members = append(obj.members, Member{Key: key, Value: val})
	}
	if _, err := dec.Token(); err != nil { // closing brace
		return nil, err
	}
	return obj, nil
}

func parseArray(dec *json.Decoder) (*Value, error) {
	arr := &Value{kind: KindArray}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, err
		}
		arr.array = append(arr.array, val)
	}
	if _, err := dec.Token(); err != nil { // closing bracket
		return nil, err
	}
	return arr, nil
}

// MarshalJSON re-emits the tree with object members in original order.
func (v *Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v *Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.boolean))
	case KindNumber:
		buf.WriteString(v.number.String())
	case KindString:
		raw, err := json.Marshal(v.str)
		if err != nil {
			return err
		}
		buf.Write(raw)
	case KindArray:
		buf.WriteByte('[')
		for i, elem := range v.array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := elem.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := json.Marshal(m.Key)
			if err != nil {
				return err
			}
			buf.Write(key)
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// StringLeaf is one string occurrence in the tree, carrying the object key
// it sits under and the dotted path from the root. Array elements inherit
// their container's field name.
type StringLeaf struct {
	Field string
	Path  string
	Value *Value
}

// StringLeaves collects every string leaf in document order.
func (v *Value) StringLeaves() []StringLeaf {
	var out []StringLeaf
	v.walk("", "", &out)
	return out
}

func (v *Value) walk(field, path string, out *[]StringLeaf) {
	switch v.kind {
	case KindString:
		*out = append(*out, StringLeaf{Field: field, Path: path, Value: v})
	case KindArray:
		for _, elem := range v.array {
			elem.walk(field, path, out)
		}
	case KindObject:
		for _, m := range v.members {
			childPath := m.Key
			if path != "" {
				childPath = path + "." + m.Key
			}
			m.Value.walk(m.Key, childPath, out)
		}
	}
}
