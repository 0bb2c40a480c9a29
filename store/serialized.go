package store

import (
	"context"
	"database/sql"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/stevemurr/tinybase/schema"
)

// SerializedStore runs every operation on one shared connection.
//
// The connection is guarded by mu: each operation holds the lock for its whole
// duration, including read-backs after writes, so at most one statement is in
// flight at any time. Operations observe each other in lock-acquisition order.
type SerializedStore struct {
	mu     sync.Mutex
	conn   *sql.Conn // guarded by mu
	closed bool      // guarded by mu
	db     *sql.DB
	d      Dialect

	ops sqlOps
	l   *zap.Logger
}

// NewSerializedStore takes a single connection from db, creates the tables
// if needed and returns a store using that connection only.
// The store takes ownership of db and caps its pool at one connection.
func NewSerializedStore(ctx context.Context, db *sql.DB, d Dialect, l *zap.Logger) (*SerializedStore, error) {
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxIdleTime(0)
	db.SetConnMaxLifetime(0)

	conn, err := db.Conn(ctx)
	if err != nil {
		return nil, &EngineError{Op: "open connection", Err: err}
	}
	if err := createTables(ctx, conn, d); err != nil {
		_ = conn.Close()
		return nil, err
	}

	l.Info("Serialized store ready.", zap.Stringer("dialect", d))
	return &SerializedStore{conn: conn, db: db, d: d, ops: newSQLOps(d, l), l: l}, nil
}

// Close waits for the in-flight operation, then releases the connection and the pool.
func (s *SerializedStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	if s.conn != nil {
		if err := s.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, err)
		}
		s.conn = nil
	}
	errs = append(errs, s.db.Close())
	return errors.Join(errs...)
}

// acquire locks the store and returns the shared connection.
// The caller must call the returned release function on every exit path.
//
// If the driver has dropped the connection, a new one is taken from the pool.
func (s *SerializedStore) acquire() (*sql.Conn, func(), error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, nil, &EngineError{Op: "acquire connection", Err: sql.ErrConnDone}
	}
	if err := s.ensureConn(); err != nil {
		s.mu.Unlock()
		return nil, nil, err
	}
	return s.conn, s.mu.Unlock, nil
}

// ensureConn replaces a connection that database/sql has closed.
// It must be called with mu held.
func (s *SerializedStore) ensureConn() error {
	if s.conn != nil {
		err := s.conn.Raw(func(any) error { return nil })
		if !errors.Is(err, sql.ErrConnDone) {
			return nil
		}
		s.l.Warn("Shared connection was closed, opening a new one.")
		s.conn = nil
	}

	ctx := context.Background()
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return &EngineError{Op: "acquire connection", Err: err}
	}
	if err := createTables(ctx, conn, s.d); err != nil {
		_ = conn.Close()
		return err
	}
	s.conn = conn
	return nil
}

func (s *SerializedStore) CreateCollection(ctx context.Context, name string, sch *schema.Schema) (int64, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return s.ops.createCollection(ctx, conn, name, sch)
}

func (s *SerializedStore) GetCollection(ctx context.Context, id int64) (*Collection, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.ops.getCollection(ctx, conn, id)
}

func (s *SerializedStore) ListCollections(ctx context.Context) ([]*Collection, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.ops.listCollections(ctx, conn)
}

func (s *SerializedStore) UpdateCollection(ctx context.Context, id int64, upd CollectionUpdate) (*Collection, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.ops.updateCollection(ctx, conn, id, upd)
}

func (s *SerializedStore) DeleteCollection(ctx context.Context, id int64) error {
	conn, release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.ops.deleteCollection(ctx, conn, id)
}

func (s *SerializedStore) CreateRecord(ctx context.Context, collectionID int64, data any) (int64, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return 0, err
	}
	defer release()
	return s.ops.createRecord(ctx, conn, collectionID, data)
}

func (s *SerializedStore) ListRecords(ctx context.Context, collectionID int64) ([]*Record, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.ops.listRecords(ctx, conn, collectionID)
}

func (s *SerializedStore) GetRecord(ctx context.Context, collectionID, recordID int64) (*Record, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.ops.getRecord(ctx, conn, collectionID, recordID)
}

func (s *SerializedStore) UpdateRecord(ctx context.Context, collectionID, recordID int64, data any) (*Record, error) {
	conn, release, err := s.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return s.ops.updateRecord(ctx, conn, collectionID, recordID, data)
}

func (s *SerializedStore) DeleteRecord(ctx context.Context, collectionID, recordID int64) error {
	conn, release, err := s.acquire()
	if err != nil {
		return err
	}
	defer release()
	return s.ops.deleteRecord(ctx, conn, collectionID, recordID)
}

// Stats returns the statistics of the single-connection pool.
func (s *SerializedStore) Stats() sql.DBStats {
	return s.db.Stats()
}
