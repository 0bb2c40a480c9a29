package store

import (
	"bytes"
	"database/sql"

	"github.com/goccy/go-json"

	"github.com/stevemurr/tinybase/schema"
)

// encodeSchema returns the canonical JSON text of a schema,
// or a NULL string for a nil schema.
func encodeSchema(s *schema.Schema) (sql.NullString, error) {
	if s == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(s)
	if err != nil {
		return sql.NullString{}, &SerializationError{What: "schema", Err: err}
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func decodeSchema(raw sql.NullString) (*schema.Schema, error) {
	if !raw.Valid {
		return nil, nil
	}
	var s schema.Schema
	if err := json.Unmarshal([]byte(raw.String), &s); err != nil {
		return nil, &SerializationError{What: "schema", Err: err}
	}
	if err := s.Check(); err != nil {
		return nil, &SerializationError{What: "schema", Err: err}
	}
	return &s, nil
}

func encodeData(data any) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", &SerializationError{What: "record data", Err: err}
	}
	return string(b), nil
}

// decodeData decodes a JSON document keeping numbers as json.Number,
// so integers survive a round trip unchanged.
func decodeData(raw string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, &SerializationError{What: "record data", Err: err}
	}
	return v, nil
}

// DecodeDocument decodes a JSON document the way stores return it.
func DecodeDocument(b []byte) (any, error) {
	return decodeData(string(b))
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCollection(row rowScanner) (*Collection, error) {
	var (
		c   Collection
		raw sql.NullString
	)
	if err := row.Scan(&c.ID, &c.Name, &raw); err != nil {
		return nil, err
	}
	s, err := decodeSchema(raw)
	if err != nil {
		return nil, err
	}
	c.Schema = s
	return &c, nil
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		r   Record
		raw string
	)
	if err := row.Scan(&r.ID, &r.CollectionID, &raw); err != nil {
		return nil, err
	}
	data, err := decodeData(raw)
	if err != nil {
		return nil, err
	}
	r.Data = data
	return &r, nil
}
