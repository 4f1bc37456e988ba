package record

import (
	"bytes"
	"encoding/json"
)

// Record is a single scraped item: a flat mapping of field names to string
// values. Field order is preserved in the order fields were first set, so
// exported rows and JSON objects come out in a stable, predictable order.
type Record struct {
	fields []string
	values map[string]string
}

// New creates an empty record.
func New() *Record {
	return &Record{
		values: map[string]string{},
	}
}

// Set stores a field value. Setting an existing field overwrites its value
// without changing its position.
func (r *Record) Set(field, value string) {
	if _, ok := r.values[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.values[field] = value
}

// Get returns the value for a field. Missing fields return the empty string.
func (r *Record) Get(field string) string {
	return r.values[field]
}

// Has reports whether the field has been set on this record.
func (r *Record) Has(field string) bool {
	_, ok := r.values[field]
	return ok
}

// Fields returns the record's field names in insertion order.
func (r *Record) Fields() []string {
	out := make([]string, len(r.fields))
	copy(out, r.fields)
	return out
}

// Len returns the number of fields set on the record.
func (r *Record) Len() int {
	return len(r.fields)
}

// Row returns the record's values in the given field order. Fields the
// record doesn't have yield empty strings, so every row has the same width.
func (r *Record) Row(fields []string) []string {
	row := make([]string, len(fields))
	for i, f := range fields {
		row[i] = r.values[f]
	}
	return row
}

// MarshalJSON encodes the record as a JSON object with keys in field order.
// The standard map encoding would sort keys alphabetically, which scrambles
// the column order users configured.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.values[f])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a flat JSON object into the record. Key order from
// the input is preserved.
func (r *Record) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	// Opening brace.
	if _, err := dec.Token(); err != nil {
		return err
	}

	r.fields = nil
	r.values = map[string]string{}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var value string
		if err := dec.Decode(&value); err != nil {
			return err
		}
		r.Set(key, value)
	}

	// Closing brace.
	_, err := dec.Token()
	return err
}

// Fields returns the union of field names across all records, in the order
// fields were first seen. This is the default column order for exports when
// the user hasn't configured one.
func Fields(records []*Record) []string {
	var fields []string
	seen := map[string]bool{}

	for _, rec := range records {
		for _, f := range rec.fields {
			if !seen[f] {
				seen[f] = true
				fields = append(fields, f)
			}
		}
	}

	return fields
}
