package store_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/AlekSi/pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/stevemurr/tinybase/schema"
	"github.com/stevemurr/tinybase/store"
)

func postsSchema() *schema.Schema {
	return schema.New(map[string]schema.FieldDefinition{
		"title": {Type: schema.TypeString, Required: true},
	})
}

func collectionIDs(cs []*store.Collection) []int64 {
	ids := make([]int64, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}

// runStoreTests runs a common test suite against any Store implementation.
func runStoreTests(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("CreateCollection and GetCollection", func(t *testing.T) {
		id, err := s.CreateCollection(ctx, "Posts", postsSchema())
		require.NoError(t, err)

		got, err := s.GetCollection(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, "Posts", got.Name)
		require.NotNil(t, got.Schema)
		assert.Equal(t, schema.TypeString, got.Schema.Fields["title"].Type)
		assert.True(t, got.Schema.Fields["title"].Required)
	})

	t.Run("CreateCollection without schema", func(t *testing.T) {
		id, err := s.CreateCollection(ctx, "Loose", nil)
		require.NoError(t, err)

		got, err := s.GetCollection(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Nil(t, got.Schema)
	})

	t.Run("GetCollection missing", func(t *testing.T) {
		got, err := s.GetCollection(ctx, 1<<40)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("ListCollections", func(t *testing.T) {
		a, err := s.CreateCollection(ctx, "A", nil)
		require.NoError(t, err)
		b, err := s.CreateCollection(ctx, "A", postsSchema())
		require.NoError(t, err)
		assert.NotEqual(t, a, b, "names are not unique, ids are")

		cs, err := s.ListCollections(ctx)
		require.NoError(t, err)
		assert.Subset(t, collectionIDs(cs), []int64{a, b})
	})

	t.Run("UpdateCollection name only", func(t *testing.T) {
		id, err := s.CreateCollection(ctx, "Users", postsSchema())
		require.NoError(t, err)

		updated, err := s.UpdateCollection(ctx, id, store.CollectionUpdate{Name: pointer.ToString("New Users")})
		require.NoError(t, err)
		assert.Equal(t, "New Users", updated.Name)

		got, err := s.GetCollection(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "New Users", got.Name)
		assert.Equal(t, postsSchema(), got.Schema)
	})

	t.Run("UpdateCollection schema", func(t *testing.T) {
		id, err := s.CreateCollection(ctx, "Tasks", nil)
		require.NoError(t, err)

		replaced := schema.New(map[string]schema.FieldDefinition{
			"done": {Type: schema.TypeBoolean, Required: true, Default: false},
		})
		updated, err := s.UpdateCollection(ctx, id, store.CollectionUpdate{Schema: replaced})
		require.NoError(t, err)
		assert.Equal(t, "Tasks", updated.Name)
		require.NotNil(t, updated.Schema)
		assert.Equal(t, schema.TypeBoolean, updated.Schema.Fields["done"].Type)
		assert.Equal(t, false, updated.Schema.Fields["done"].Default)

		updated, err = s.UpdateCollection(ctx, id, store.CollectionUpdate{
			Name:         pointer.ToString("Chores"),
			Schema:       postsSchema(),
			RemoveSchema: true,
		})
		require.NoError(t, err)
		assert.Equal(t, "Chores", updated.Name)
		assert.Nil(t, updated.Schema)
	})

	t.Run("UpdateCollection empty", func(t *testing.T) {
		id, err := s.CreateCollection(ctx, "Same", postsSchema())
		require.NoError(t, err)

		got, err := s.UpdateCollection(ctx, id, store.CollectionUpdate{})
		require.NoError(t, err)
		assert.Equal(t, "Same", got.Name)
		assert.Equal(t, postsSchema(), got.Schema)
	})

	t.Run("UpdateCollection missing", func(t *testing.T) {
		_, err := s.UpdateCollection(ctx, 1<<40, store.CollectionUpdate{Name: pointer.ToString("x")})
		require.ErrorIs(t, err, store.ErrNotFound)

		_, err = s.UpdateCollection(ctx, 1<<40, store.CollectionUpdate{})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Record CRUD", func(t *testing.T) {
		cid, err := s.CreateCollection(ctx, "Posts", postsSchema())
		require.NoError(t, err)

		rid, err := s.CreateRecord(ctx, cid, map[string]any{"title": "Hello!", "views": 42})
		require.NoError(t, err)

		got, err := s.GetRecord(ctx, cid, rid)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, rid, got.ID)
		assert.Equal(t, cid, got.CollectionID)
		assert.Equal(t, map[string]any{"title": "Hello!", "views": json.Number("42")}, got.Data)

		updated, err := s.UpdateRecord(ctx, cid, rid, map[string]any{"title": "Bye"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"title": "Bye"}, updated.Data, "update replaces data")

		recs, err := s.ListRecords(ctx, cid)
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, updated, recs[0])

		require.NoError(t, s.DeleteRecord(ctx, cid, rid))
		got, err = s.GetRecord(ctx, cid, rid)
		require.NoError(t, err)
		assert.Nil(t, got)

		require.NoError(t, s.DeleteRecord(ctx, cid, rid), "deleting a missing record is not an error")
	})

	t.Run("Record scoped to collection", func(t *testing.T) {
		a, err := s.CreateCollection(ctx, "A", nil)
		require.NoError(t, err)
		b, err := s.CreateCollection(ctx, "B", nil)
		require.NoError(t, err)

		rid, err := s.CreateRecord(ctx, a, map[string]any{"x": "y"})
		require.NoError(t, err)

		got, err := s.GetRecord(ctx, b, rid)
		require.NoError(t, err)
		assert.Nil(t, got)

		_, err = s.UpdateRecord(ctx, b, rid, map[string]any{})
		require.ErrorIs(t, err, store.ErrNotFound)

		require.NoError(t, s.DeleteRecord(ctx, b, rid))
		got, err = s.GetRecord(ctx, a, rid)
		require.NoError(t, err)
		assert.NotNil(t, got, "delete in another collection must not remove the record")
	})

	t.Run("Record non-object data", func(t *testing.T) {
		cid, err := s.CreateCollection(ctx, "Anything", nil)
		require.NoError(t, err)

		for _, data := range []any{[]any{"a", true}, "plain", nil} {
			rid, err := s.CreateRecord(ctx, cid, data)
			require.NoError(t, err)
			got, err := s.GetRecord(ctx, cid, rid)
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, data, got.Data)
		}
	})

	t.Run("UpdateRecord missing", func(t *testing.T) {
		cid, err := s.CreateCollection(ctx, "Empty", nil)
		require.NoError(t, err)
		_, err = s.UpdateRecord(ctx, cid, 1<<40, map[string]any{"a": "b"})
		require.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("ListRecords empty", func(t *testing.T) {
		recs, err := s.ListRecords(ctx, 1<<40)
		require.NoError(t, err)
		assert.NotNil(t, recs)
		assert.Empty(t, recs)
	})

	t.Run("DeleteCollection cascades", func(t *testing.T) {
		cid, err := s.CreateCollection(ctx, "Doomed", postsSchema())
		require.NoError(t, err)
		other, err := s.CreateCollection(ctx, "Survivor", nil)
		require.NoError(t, err)

		rid, err := s.CreateRecord(ctx, cid, map[string]any{"title": "bye"})
		require.NoError(t, err)
		kept, err := s.CreateRecord(ctx, other, map[string]any{"title": "stay"})
		require.NoError(t, err)

		require.NoError(t, s.DeleteCollection(ctx, cid))

		c, err := s.GetCollection(ctx, cid)
		require.NoError(t, err)
		assert.Nil(t, c)

		r, err := s.GetRecord(ctx, cid, rid)
		require.NoError(t, err)
		assert.Nil(t, r)

		recs, err := s.ListRecords(ctx, cid)
		require.NoError(t, err)
		assert.Empty(t, recs)

		r, err = s.GetRecord(ctx, other, kept)
		require.NoError(t, err)
		assert.NotNil(t, r)
	})

	t.Run("DeleteCollection missing", func(t *testing.T) {
		require.NoError(t, s.DeleteCollection(ctx, 1<<40))
	})
}

func newStore(t *testing.T, cfg store.Config) store.Store {
	t.Helper()
	s, err := store.New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestMemoryStore(t *testing.T) {
	runStoreTests(t, store.NewMemoryStore(zap.NewNop()))
}

func TestJsonFileStore(t *testing.T) {
	runStoreTests(t, newStore(t, store.Config{Backend: store.BackendJSON, DataDir: t.TempDir()}))
}

func TestSerializedStore(t *testing.T) {
	for _, driver := range []string{store.DriverMattn, store.DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			t.Run("file", func(t *testing.T) {
				runStoreTests(t, newStore(t, store.Config{
					Backend:      store.BackendSQLite,
					SQLiteDriver: driver,
					DataDir:      t.TempDir(),
				}))
			})
			t.Run("memory", func(t *testing.T) {
				runStoreTests(t, newStore(t, store.Config{
					Backend:      store.BackendSQLite,
					SQLiteDriver: driver,
					InMemory:     true,
				}))
			})
		})
	}
}

func TestDirectStore(t *testing.T) {
	for _, driver := range []string{store.DriverMattn, store.DriverModernc} {
		t.Run(driver, func(t *testing.T) {
			runStoreTests(t, newStore(t, store.Config{
				Backend:      store.BackendSQLitePool,
				SQLiteDriver: driver,
				DataDir:      t.TempDir(),
				MaxOpenConns: 4,
			}))
		})
	}
}

func TestDirectStorePostgres(t *testing.T) {
	url := os.Getenv("TINYBASE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("TINYBASE_TEST_POSTGRES_URL is not set")
	}
	runStoreTests(t, newStore(t, store.Config{
		Backend:      store.BackendPostgres,
		DatabaseURL:  url,
		MaxOpenConns: 4,
	}))
}

func TestFactory(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		backend string
	}{
		{store.BackendSQLite},
		{store.BackendSQLitePool},
		{store.BackendMemory},
		{store.BackendJSON},
	}
	for _, tc := range tests {
		t.Run(tc.backend, func(t *testing.T) {
			s := newStore(t, store.Config{
				Backend:      tc.backend,
				SQLiteDriver: store.DriverMattn,
				DataDir:      dir + "/" + tc.backend,
			})
			_, err := s.ListCollections(context.Background())
			require.NoError(t, err)
		})
	}

	invalid := map[string]store.Config{
		"unknown backend":      {Backend: "redis"},
		"unknown driver":       {Backend: store.BackendSQLite, SQLiteDriver: "sqlite4"},
		"postgres without url": {Backend: store.BackendPostgres},
		"in-memory pool":       {Backend: store.BackendSQLitePool, SQLiteDriver: store.DriverMattn, InMemory: true},
	}
	for name, cfg := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := store.New(context.Background(), cfg, zap.NewNop())
			require.Error(t, err)
		})
	}
}
