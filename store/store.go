// Package store defines the backing store interface and implementations.
package store

import (
	"context"

	"github.com/stevemurr/tinybase/schema"
)

// Collection is a named, optionally schema-constrained bucket of records.
type Collection struct {
	ID     int64          `json:"id"`
	Name   string         `json:"name"`
	Schema *schema.Schema `json:"schema"`
}

// Record is one JSON document belonging to a collection.
type Record struct {
	ID           int64 `json:"id"`
	CollectionID int64 `json:"collection_id"`
	Data         any   `json:"data"`
}

// CollectionUpdate lists the collection fields to change.
// Nil fields are left unchanged. RemoveSchema clears the schema
// and takes precedence over Schema.
type CollectionUpdate struct {
	Name         *string
	Schema       *schema.Schema
	RemoveSchema bool
}

func (u CollectionUpdate) empty() bool {
	return u.Name == nil && u.Schema == nil && !u.RemoveSchema
}

// Store is the interface that all backing stores must implement.
//
// Reads report absence as a nil result with a nil error.
// Updates of missing entities return an error wrapping ErrNotFound.
// Deletes of missing entities succeed.
type Store interface {
	// CreateCollection inserts a collection and returns its new id.
	CreateCollection(ctx context.Context, name string, s *schema.Schema) (int64, error)

	// GetCollection returns a collection by id, or nil if not found.
	GetCollection(ctx context.Context, id int64) (*Collection, error)

	// ListCollections returns all collections in storage order.
	ListCollections(ctx context.Context) ([]*Collection, error)

	// UpdateCollection applies the update and returns the collection as stored afterwards.
	UpdateCollection(ctx context.Context, id int64, upd CollectionUpdate) (*Collection, error)

	// DeleteCollection removes a collection together with all of its records.
	DeleteCollection(ctx context.Context, id int64) error

	// CreateRecord inserts a record without validating it and returns its new id.
	CreateRecord(ctx context.Context, collectionID int64, data any) (int64, error)

	// ListRecords returns every record of a collection.
	ListRecords(ctx context.Context, collectionID int64) ([]*Record, error)

	// GetRecord returns a single record, or nil if not found.
	GetRecord(ctx context.Context, collectionID, recordID int64) (*Record, error)

	// UpdateRecord replaces the data of a record.
	UpdateRecord(ctx context.Context, collectionID, recordID int64, data any) (*Record, error)

	// DeleteRecord removes a record.
	DeleteRecord(ctx context.Context, collectionID, recordID int64) error

	// Close releases the underlying resources.
	Close() error
}
