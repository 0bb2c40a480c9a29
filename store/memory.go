package store

import (
	"context"
	"database/sql"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/stevemurr/tinybase/schema"
)

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
//
// Schemas and documents are kept as encoded JSON, the same way SQL stores
// keep them in text columns, so callers never share memory with the store.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[int64]*memCollection
	records     map[int64]map[int64]*memRecord // collection id -> record id -> record
	lastCollID  int64
	lastRecID   int64

	// persist is called with mu held after every mutation.
	// When it fails the mutation is undone.
	persist func() error

	l *zap.Logger
}

type memCollection struct {
	ID     int64           `json:"id"`
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

type memRecord struct {
	ID           int64           `json:"id"`
	CollectionID int64           `json:"collection_id"`
	Data         json.RawMessage `json:"data"`
}

func NewMemoryStore(l *zap.Logger) *MemoryStore {
	return &MemoryStore{
		collections: make(map[int64]*memCollection),
		records:     make(map[int64]map[int64]*memRecord),
		l:           l,
	}
}

func (m *MemoryStore) Close() error {
	return nil
}

func (c *memCollection) decode() (*Collection, error) {
	raw := sql.NullString{String: string(c.Schema), Valid: len(c.Schema) > 0}
	s, err := decodeSchema(raw)
	if err != nil {
		return nil, err
	}
	return &Collection{ID: c.ID, Name: c.Name, Schema: s}, nil
}

func (r *memRecord) decode() (*Record, error) {
	data, err := decodeData(string(r.Data))
	if err != nil {
		return nil, err
	}
	return &Record{ID: r.ID, CollectionID: r.CollectionID, Data: data}, nil
}

func encodeMemSchema(s *schema.Schema) (json.RawMessage, error) {
	raw, err := encodeSchema(s)
	if err != nil || !raw.Valid {
		return nil, err
	}
	return json.RawMessage(raw.String), nil
}

// commit persists the current state. If that fails, undo restores
// the state as it was before the mutation.
func (m *MemoryStore) commit(op string, undo func()) error {
	if m.persist == nil {
		return nil
	}
	if err := m.persist(); err != nil {
		undo()
		return &EngineError{Op: op, Err: err}
	}
	return nil
}

func (m *MemoryStore) CreateCollection(_ context.Context, name string, s *schema.Schema) (int64, error) {
	raw, err := encodeMemSchema(s)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastCollID++
	id := m.lastCollID
	m.collections[id] = &memCollection{ID: id, Name: name, Schema: raw}
	if err := m.commit("create collection", func() {
		delete(m.collections, id)
		m.lastCollID--
	}); err != nil {
		return 0, err
	}
	m.l.Debug("Collection created.", zap.Int64("id", id), zap.String("name", name))
	return id, nil
}

func (m *MemoryStore) GetCollection(_ context.Context, id int64) (*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, nil
	}
	return c.decode()
}

func (m *MemoryStore) ListCollections(_ context.Context) ([]*Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]int64, 0, len(m.collections))
	for id := range m.collections {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]*Collection, 0, len(ids))
	for _, id := range ids {
		c, err := m.collections[id].decode()
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, nil
}

func (m *MemoryStore) UpdateCollection(_ context.Context, id int64, upd CollectionUpdate) (*Collection, error) {
	var raw json.RawMessage
	if upd.Schema != nil && !upd.RemoveSchema {
		var err error
		if raw, err = encodeMemSchema(upd.Schema); err != nil {
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.collections[id]
	if !ok {
		return nil, collectionNotFound(id)
	}
	if upd.empty() {
		return c.decode()
	}

	updated := *c
	if upd.Name != nil {
		updated.Name = *upd.Name
	}
	switch {
	case upd.RemoveSchema:
		updated.Schema = nil
	case upd.Schema != nil:
		updated.Schema = raw
	}
	m.collections[id] = &updated
	if err := m.commit("update collection", func() { m.collections[id] = c }); err != nil {
		return nil, err
	}
	m.l.Debug("Collection updated.", zap.Int64("id", id))
	return updated.decode()
}

func (m *MemoryStore) DeleteCollection(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, hadColl := m.collections[id]
	recs, hadRecs := m.records[id]
	if !hadColl && !hadRecs {
		return nil
	}
	delete(m.collections, id)
	delete(m.records, id)
	if err := m.commit("delete collection", func() {
		if hadColl {
			m.collections[id] = coll
		}
		if hadRecs {
			m.records[id] = recs
		}
	}); err != nil {
		return err
	}
	m.l.Debug("Collection deleted.", zap.Int64("id", id), zap.Int("records", len(recs)))
	return nil
}

func (m *MemoryStore) CreateRecord(_ context.Context, collectionID int64, data any) (int64, error) {
	raw, err := encodeData(data)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastRecID++
	id := m.lastRecID
	_, hadRecs := m.records[collectionID]
	if !hadRecs {
		m.records[collectionID] = make(map[int64]*memRecord)
	}
	m.records[collectionID][id] = &memRecord{ID: id, CollectionID: collectionID, Data: json.RawMessage(raw)}
	if err := m.commit("create record", func() {
		if hadRecs {
			delete(m.records[collectionID], id)
		} else {
			delete(m.records, collectionID)
		}
		m.lastRecID--
	}); err != nil {
		return 0, err
	}
	m.l.Debug("Record created.", zap.Int64("collection_id", collectionID), zap.Int64("id", id))
	return id, nil
}

func (m *MemoryStore) ListRecords(_ context.Context, collectionID int64) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	coll := m.records[collectionID]
	ids := make([]int64, 0, len(coll))
	for id := range coll {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	result := make([]*Record, 0, len(ids))
	for _, id := range ids {
		r, err := coll[id].decode()
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, nil
}

func (m *MemoryStore) GetRecord(_ context.Context, collectionID, recordID int64) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[collectionID][recordID]
	if !ok {
		return nil, nil
	}
	return r.decode()
}

func (m *MemoryStore) UpdateRecord(_ context.Context, collectionID, recordID int64, data any) (*Record, error) {
	raw, err := encodeData(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.records[collectionID][recordID]
	if !ok {
		return nil, recordNotFound(collectionID, recordID)
	}
	updated := &memRecord{ID: r.ID, CollectionID: r.CollectionID, Data: json.RawMessage(raw)}
	m.records[collectionID][recordID] = updated
	if err := m.commit("update record", func() { m.records[collectionID][recordID] = r }); err != nil {
		return nil, err
	}
	m.l.Debug("Record updated.", zap.Int64("collection_id", collectionID), zap.Int64("id", recordID))
	return updated.decode()
}

func (m *MemoryStore) DeleteRecord(_ context.Context, collectionID, recordID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	coll, ok := m.records[collectionID]
	if !ok {
		return nil
	}
	r, exists := coll[recordID]
	if !exists {
		return nil
	}
	delete(coll, recordID)
	if err := m.commit("delete record", func() { coll[recordID] = r }); err != nil {
		return err
	}
	m.l.Debug("Record deleted.", zap.Int64("collection_id", collectionID), zap.Int64("id", recordID))
	return nil
}
