package store

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/stevemurr/tinybase/schema"
)

// querier is implemented by *sql.DB and *sql.Conn.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// sqlOps implements the store operations on top of a querier.
// It holds no connection itself: callers decide how the querier is shared.
type sqlOps struct {
	q queries
	l *zap.Logger
}

func newSQLOps(d Dialect, l *zap.Logger) sqlOps {
	return sqlOps{q: newQueries(d), l: l}
}

// createTables creates the collections and records tables if they do not exist.
func createTables(ctx context.Context, qr querier, d Dialect) error {
	for _, stmt := range d.tables() {
		if _, err := qr.ExecContext(ctx, stmt); err != nil {
			return &EngineError{Op: "create tables", Err: err}
		}
	}
	return nil
}

func (o sqlOps) createCollection(ctx context.Context, qr querier, name string, s *schema.Schema) (int64, error) {
	raw, err := encodeSchema(s)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := qr.QueryRowContext(ctx, o.q.insertCollection, name, raw).Scan(&id); err != nil {
		return 0, engineErr("create collection", err)
	}
	o.l.Debug("Collection created.", zap.Int64("id", id), zap.String("name", name))
	return id, nil
}

func (o sqlOps) getCollection(ctx context.Context, qr querier, id int64) (*Collection, error) {
	c, err := scanCollection(qr.QueryRowContext(ctx, o.q.selectCollection, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engineErr("get collection", err)
	}
	return c, nil
}

func (o sqlOps) listCollections(ctx context.Context, qr querier) ([]*Collection, error) {
	rows, err := qr.QueryContext(ctx, o.q.listCollections)
	if err != nil {
		return nil, engineErr("list collections", err)
	}
	defer rows.Close()

	result := []*Collection{}
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, engineErr("list collections", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("list collections", err)
	}
	return result, nil
}

func (o sqlOps) updateCollection(ctx context.Context, qr querier, id int64, upd CollectionUpdate) (*Collection, error) {
	var (
		query string
		args  []any
	)
	switch {
	case upd.empty():
	case upd.Name != nil && (upd.Schema != nil || upd.RemoveSchema):
		raw, err := o.updatedSchema(upd)
		if err != nil {
			return nil, err
		}
		query, args = o.q.updateNameSchema, []any{*upd.Name, raw, id}
	case upd.Name != nil:
		query, args = o.q.updateName, []any{*upd.Name, id}
	default:
		raw, err := o.updatedSchema(upd)
		if err != nil {
			return nil, err
		}
		query, args = o.q.updateSchema, []any{raw, id}
	}

	if query != "" {
		if _, err := qr.ExecContext(ctx, query, args...); err != nil {
			return nil, engineErr("update collection", err)
		}
	}

	c, err := o.getCollection(ctx, qr, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, collectionNotFound(id)
	}
	o.l.Debug("Collection updated.", zap.Int64("id", id))
	return c, nil
}

func (o sqlOps) updatedSchema(upd CollectionUpdate) (sql.NullString, error) {
	if upd.RemoveSchema {
		return sql.NullString{}, nil
	}
	return encodeSchema(upd.Schema)
}

// deleteCollection removes the records and the collection in one transaction,
// so no reader sees one without the other.
//
// The transaction is not bound to the caller's cancellation: once started it
// runs to completion. A cancelled transaction makes database/sql discard the
// connection, which SerializedStore cannot afford.
func (o sqlOps) deleteCollection(ctx context.Context, qr querier, id int64) (err error) {
	ctx = context.WithoutCancel(ctx)

	tx, err := qr.BeginTx(ctx, nil)
	if err != nil {
		return engineErr("delete collection", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, o.q.deleteCollRecords, id)
	if err != nil {
		return engineErr("delete collection", err)
	}
	if _, err = tx.ExecContext(ctx, o.q.deleteCollection, id); err != nil {
		return engineErr("delete collection", err)
	}
	if err = tx.Commit(); err != nil {
		return engineErr("delete collection", err)
	}

	n, _ := res.RowsAffected()
	o.l.Debug("Collection deleted.", zap.Int64("id", id), zap.Int64("records", n))
	return nil
}

func (o sqlOps) createRecord(ctx context.Context, qr querier, collectionID int64, data any) (int64, error) {
	raw, err := encodeData(data)
	if err != nil {
		return 0, err
	}
	var id int64
	if err := qr.QueryRowContext(ctx, o.q.insertRecord, collectionID, raw).Scan(&id); err != nil {
		return 0, engineErr("create record", err)
	}
	o.l.Debug("Record created.", zap.Int64("collection_id", collectionID), zap.Int64("id", id))
	return id, nil
}

func (o sqlOps) listRecords(ctx context.Context, qr querier, collectionID int64) ([]*Record, error) {
	rows, err := qr.QueryContext(ctx, o.q.listRecords, collectionID)
	if err != nil {
		return nil, engineErr("list records", err)
	}
	defer rows.Close()

	result := []*Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, engineErr("list records", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, engineErr("list records", err)
	}
	return result, nil
}

func (o sqlOps) getRecord(ctx context.Context, qr querier, collectionID, recordID int64) (*Record, error) {
	r, err := scanRecord(qr.QueryRowContext(ctx, o.q.selectRecord, collectionID, recordID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, engineErr("get record", err)
	}
	return r, nil
}

func (o sqlOps) updateRecord(ctx context.Context, qr querier, collectionID, recordID int64, data any) (*Record, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}
	if _, err := qr.ExecContext(ctx, o.q.updateRecord, raw, collectionID, recordID); err != nil {
		return nil, engineErr("update record", err)
	}

	r, err := o.getRecord(ctx, qr, collectionID, recordID)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, recordNotFound(collectionID, recordID)
	}
	o.l.Debug("Record updated.", zap.Int64("collection_id", collectionID), zap.Int64("id", recordID))
	return r, nil
}

func (o sqlOps) deleteRecord(ctx context.Context, qr querier, collectionID, recordID int64) error {
	if _, err := qr.ExecContext(ctx, o.q.deleteRecord, collectionID, recordID); err != nil {
		return engineErr("delete record", err)
	}
	o.l.Debug("Record deleted.", zap.Int64("collection_id", collectionID), zap.Int64("id", recordID))
	return nil
}
