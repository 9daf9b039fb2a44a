package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedSource is returned when an import document is not a JSON array of reference objects.
var ErrMalformedSource = errors.New("malformed import source")

// sourceSchema describes the import/export document: an array of record-like objects.
// Unknown keys are allowed and carried in Reference.Extra.
const sourceSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "properties": {
      "id":         {"type": ["string", "null"]},
      "title":      {"type": ["string", "null"]},
      "authors":    {"type": ["string", "null"]},
      "year":       {"type": ["integer", "null"]},
      "notes":      {"type": ["string", "null"]},
      "created_at": {"type": ["string", "null"], "format": "date-time"}
    }
  }
}`

var compiledSource = mustCompile(sourceSchema)

func mustCompile(s string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(fmt.Sprintf("compile import schema: %v", err))
	}
	return schema
}

// DecodeReferences reads a whole import document and validates its shape before
// returning any entry, so a bad document never causes a partial import.
func DecodeReferences(r io.Reader) ([]Reference, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read import source: %w", err)
	}

	res, err := compiledSource.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrMalformedSource, strings.Join(msgs, "; "))
	}

	var entries []map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSource, err)
	}

	out := make([]Reference, 0, len(entries))
	for i, fields := range entries {
		ref, err := referenceFromFields(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrMalformedSource, i, err)
		}
		out = append(out, ref)
	}
	return out, nil
}

func referenceFromFields(fields map[string]json.RawMessage) (Reference, error) {
	var ref Reference
	for key, val := range fields {
		var err error
		switch key {
		case FieldID:
			err = json.Unmarshal(val, &ref.ID)
		case FieldTitle:
			err = json.Unmarshal(val, &ref.Title)
		case FieldAuthors:
			err = json.Unmarshal(val, &ref.Authors)
		case FieldYear:
			err = json.Unmarshal(val, &ref.Year)
		case FieldNotes:
			err = json.Unmarshal(val, &ref.Notes)
		case FieldCreated:
			err = json.Unmarshal(val, &ref.CreatedAt)
		default:
			if ref.Extra == nil {
				ref.Extra = make(map[string]json.RawMessage)
			}
			ref.Extra[key] = append(json.RawMessage(nil), val...)
		}
		if err != nil {
			return Reference{}, fmt.Errorf("field %q: %w", key, err)
		}
	}
	return ref, nil
}

// EncodeReferences writes refs as an indented JSON array consumable by DecodeReferences.
// Known keys come first in a fixed order, extra keys follow sorted by name.
func EncodeReferences(w io.Writer, refs []Reference) (int, error) {
	wire := make([]wireReference, 0, len(refs))
	for _, ref := range refs {
		wire = append(wire, wireReference(ref))
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(wire); err != nil {
		return 0, fmt.Errorf("encode references: %w", err)
	}
	return len(refs), nil
}

type wireReference Reference

func (w wireReference) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	first := true
	add := func(key string, v any) error {
		b, err := marshalValue(v)
		if err != nil {
			return fmt.Errorf("field %q: %w", key, err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := marshalValue(key)
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(b)
		return nil
	}

	known := []struct {
		key string
		val any
	}{
		{FieldID, w.ID},
		{FieldTitle, w.Title},
		{FieldAuthors, w.Authors},
		{FieldYear, w.Year},
		{FieldNotes, w.Notes},
	}
	for _, f := range known {
		if err := add(f.key, f.val); err != nil {
			return nil, err
		}
	}
	if w.CreatedAt != nil {
		if err := add(FieldCreated, w.CreatedAt); err != nil {
			return nil, err
		}
	}

	keys := make([]string, 0, len(w.Extra))
	for k := range w.Extra {
		if isKnownField(k) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := add(k, w.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func isKnownField(k string) bool {
	switch k {
	case FieldID, FieldTitle, FieldAuthors, FieldYear, FieldNotes, FieldCreated:
		return true
	}
	return false
}
