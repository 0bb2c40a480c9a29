package store_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevemurr/tinybase/store"
)

// sqlConfigs returns a config for every SQL-backed store.
func sqlConfigs(t *testing.T) map[string]store.Config {
	t.Helper()

	cfgs := make(map[string]store.Config)
	for _, driver := range []string{store.DriverMattn, store.DriverModernc} {
		cfgs["serialized/"+driver] = store.Config{
			Backend:      store.BackendSQLite,
			SQLiteDriver: driver,
			InMemory:     true,
		}
		cfgs["direct/"+driver] = store.Config{
			Backend:      store.BackendSQLitePool,
			SQLiteDriver: driver,
			DataDir:      t.TempDir(),
			MaxOpenConns: 4,
		}
	}
	if url := os.Getenv("TINYBASE_TEST_POSTGRES_URL"); url != "" {
		cfgs["direct/postgres"] = store.Config{
			Backend:      store.BackendPostgres,
			DatabaseURL:  url,
			MaxOpenConns: 4,
		}
	}
	return cfgs
}

func TestCancelledContext(t *testing.T) {
	for name, cfg := range sqlConfigs(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, cfg)

			keep, err := s.CreateCollection(ctx, "Keep", nil)
			require.NoError(t, err)
			kept, err := s.CreateRecord(ctx, keep, map[string]any{"keep": true})
			require.NoError(t, err)

			t.Run("DeleteCollection runs to completion", func(t *testing.T) {
				// The first deadline has already passed; later ones expire mid-transaction.
				for attempt := 0; attempt < 8; attempt++ {
					cid, err := s.CreateCollection(ctx, "Doomed", nil)
					require.NoError(t, err)
					for i := 0; i < 100; i++ {
						_, err := s.CreateRecord(ctx, cid, map[string]any{"i": i})
						require.NoError(t, err)
					}

					cctx, cancel := context.WithTimeout(ctx, time.Duration(attempt)*50*time.Microsecond)
					err = s.DeleteCollection(cctx, cid)
					cancel()
					require.NoError(t, err, "attempt %d", attempt)

					c, err := s.GetCollection(ctx, cid)
					require.NoError(t, err)
					assert.Nil(t, c)
					recs, err := s.ListRecords(ctx, cid)
					require.NoError(t, err)
					assert.Empty(t, recs)
				}
			})

			t.Run("other operations fail", func(t *testing.T) {
				cctx, cancel := context.WithCancel(ctx)
				cancel()

				_, err := s.CreateCollection(cctx, "Never", nil)
				assert.ErrorIs(t, err, context.Canceled)
				_, err = s.CreateRecord(cctx, keep, map[string]any{"never": true})
				assert.ErrorIs(t, err, context.Canceled)
				_, err = s.ListRecords(cctx, keep)
				assert.ErrorIs(t, err, context.Canceled)
			})

			// the store is still usable afterwards
			r, err := s.GetRecord(ctx, keep, kept)
			require.NoError(t, err)
			require.NotNil(t, r)
			assert.Equal(t, map[string]any{"keep": true}, r.Data)

			_, err = s.CreateRecord(ctx, keep, map[string]any{"after": true})
			require.NoError(t, err)
			recs, err := s.ListRecords(ctx, keep)
			require.NoError(t, err)
			assert.Len(t, recs, 2)

			colls, err := s.ListCollections(ctx)
			require.NoError(t, err)
			assert.Contains(t, collectionIDs(colls), keep)
			for _, c := range colls {
				assert.NotContains(t, []string{"Doomed", "Never"}, c.Name)
			}
		})
	}
}
