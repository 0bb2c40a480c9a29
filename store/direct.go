package store

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/stevemurr/tinybase/schema"
)

// DirectStore runs every operation on a connection taken from a database/sql pool.
//
// Operations are not serialized against each other, so DirectStore is only
// correct for engines that support concurrent connections to one database:
// PostgreSQL, or a SQLite file in WAL mode with a busy timeout.
type DirectStore struct {
	db  *sql.DB
	ops sqlOps
	l   *zap.Logger
}

// NewDirectStore creates the tables if needed and returns a store using db.
// The store takes ownership of db.
func NewDirectStore(ctx context.Context, db *sql.DB, d Dialect, l *zap.Logger) (*DirectStore, error) {
	if err := createTables(ctx, db, d); err != nil {
		return nil, err
	}
	l.Info("Direct store ready.", zap.Stringer("dialect", d))
	return &DirectStore{db: db, ops: newSQLOps(d, l), l: l}, nil
}

func (s *DirectStore) Close() error {
	return s.db.Close()
}

func (s *DirectStore) CreateCollection(ctx context.Context, name string, sch *schema.Schema) (int64, error) {
	return s.ops.createCollection(ctx, s.db, name, sch)
}

func (s *DirectStore) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	return s.ops.getCollection(ctx, s.db, id)
}

func (s *DirectStore) ListCollections(ctx context.Context) ([]*Collection, error) {
	return s.ops.listCollections(ctx, s.db)
}

func (s *DirectStore) UpdateCollection(ctx context.Context, id int64, upd CollectionUpdate) (*Collection, error) {
	return s.ops.updateCollection(ctx, s.db, id, upd)
}

func (s *DirectStore) DeleteCollection(ctx context.Context, id int64) error {
	return s.ops.deleteCollection(ctx, s.db, id)
}

func (s *DirectStore) CreateRecord(ctx context.Context, collectionID int64, data any) (int64, error) {
	return s.ops.createRecord(ctx, s.db, collectionID, data)
}

func (s *DirectStore) ListRecords(ctx context.Context, collectionID int64) ([]*Record, error) {
	return s.ops.listRecords(ctx, s.db, collectionID)
}

func (s *DirectStore) GetRecord(ctx context.Context, collectionID, recordID int64) (*Record, error) {
	return s.ops.getRecord(ctx, s.db, collectionID, recordID)
}

func (s *DirectStore) UpdateRecord(ctx context.Context, collectionID, recordID int64, data any) (*Record, error) {
	return s.ops.updateRecord(ctx, s.db, collectionID, recordID, data)
}

func (s *DirectStore) DeleteRecord(ctx context.Context, collectionID, recordID int64) error {
	return s.ops.deleteRecord(ctx, s.db, collectionID, recordID)
}

// Stats returns the pool statistics.
func (s *DirectStore) Stats() sql.DBStats {
	return s.db.Stats()
}
