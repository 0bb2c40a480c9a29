package store

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
)

// JsonFileStore is a MemoryStore that rewrites a JSON snapshot file
// after every mutation and loads it on start.
//
// Layout:
//
//	{
//	  "last_collection_id": 2,
//	  "last_record_id": 7,
//	  "collections": [{"id": 1, "name": "notes", "schema": {...}}, ...],
//	  "records": [{"id": 1, "collection_id": 1, "data": {...}}, ...]
//	}
//
// A failed write undoes the mutation in memory and is reported
// to the caller as an EngineError.
type JsonFileStore struct {
	*MemoryStore
	path string
}

type jsonSnapshot struct {
	LastCollectionID int64            `json:"last_collection_id"`
	LastRecordID     int64            `json:"last_record_id"`
	Collections      []*memCollection `json:"collections"`
	Records          []*memRecord     `json:"records"`
}

func NewJsonFileStore(path string, l *zap.Logger) (*JsonFileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, &EngineError{Op: "open json file", Err: err}
	}

	s := &JsonFileStore{MemoryStore: NewMemoryStore(l), path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.persist = s.save

	l.Info("JSON file store ready.", zap.String("path", path),
		zap.Int("collections", len(s.collections)))
	return s, nil
}

func (s *JsonFileStore) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &EngineError{Op: "load json file", Err: err}
	}

	var snap jsonSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return &SerializationError{What: "snapshot " + s.path, Err: err}
	}

	s.lastCollID = snap.LastCollectionID
	s.lastRecID = snap.LastRecordID
	for _, c := range snap.Collections {
		s.collections[c.ID] = c
	}
	for _, r := range snap.Records {
		if _, ok := s.records[r.CollectionID]; !ok {
			s.records[r.CollectionID] = make(map[int64]*memRecord)
		}
		s.records[r.CollectionID][r.ID] = r
	}
	return nil
}

// save writes the snapshot to a temporary file and renames it over the old one.
// It must be called with mu held.
func (s *JsonFileStore) save() error {
	snap := jsonSnapshot{
		LastCollectionID: s.lastCollID,
		LastRecordID:     s.lastRecID,
		Collections:      make([]*memCollection, 0, len(s.collections)),
		Records:          []*memRecord{},
	}
	for _, c := range s.collections {
		snap.Collections = append(snap.Collections, c)
	}
	for _, recs := range s.records {
		for _, r := range recs {
			snap.Records = append(snap.Records, r)
		}
	}
	sort.Slice(snap.Collections, func(i, j int) bool { return snap.Collections[i].ID < snap.Collections[j].ID })
	sort.Slice(snap.Records, func(i, j int) bool { return snap.Records[i].ID < snap.Records[j].ID })

	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
