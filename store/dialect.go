package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Dialect selects the SQL flavour spoken by a database/sql driver.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

func (d Dialect) String() string {
	switch d {
	case SQLite:
		return "sqlite"
	case Postgres:
		return "postgres"
	default:
		return fmt.Sprintf("Dialect(%d)", int(d))
	}
}

// tables returns the statements creating the collections and records tables.
func (d Dialect) tables() []string {
	idType, refType := "INTEGER PRIMARY KEY AUTOINCREMENT", "INTEGER"
	if d == Postgres {
		idType, refType = "BIGSERIAL PRIMARY KEY", "BIGINT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS collections (
			id ` + idType + `,
			name TEXT NOT NULL,
			schema TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS records (
			id ` + idType + `,
			collection_id ` + refType + ` NOT NULL,
			data TEXT NOT NULL
		)`,
	}
}

// rebind rewrites ? placeholders into the dialect's placeholder syntax.
// Queries must not contain ? inside string literals.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r != '?' {
			b.WriteRune(r)
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

// queries holds the statements used by SQL-backed stores,
// rebound for one dialect.
type queries struct {
	insertCollection  string
	selectCollection  string
	listCollections   string
	updateName        string
	updateSchema      string
	updateNameSchema  string
	deleteCollection  string
	deleteCollRecords string

	insertRecord string
	selectRecord string
	listRecords  string
	updateRecord string
	deleteRecord string
}

func newQueries(d Dialect) queries {
	return queries{
		insertCollection:  d.rebind("INSERT INTO collections (name, schema) VALUES (?, ?) RETURNING id"),
		selectCollection:  d.rebind("SELECT id, name, schema FROM collections WHERE id = ?"),
		listCollections:   "SELECT id, name, schema FROM collections ORDER BY id",
		updateName:        d.rebind("UPDATE collections SET name = ? WHERE id = ?"),
		updateSchema:      d.rebind("UPDATE collections SET schema = ? WHERE id = ?"),
		updateNameSchema:  d.rebind("UPDATE collections SET name = ?, schema = ? WHERE id = ?"),
		deleteCollection:  d.rebind("DELETE FROM collections WHERE id = ?"),
		deleteCollRecords: d.rebind("DELETE FROM records WHERE collection_id = ?"),

		insertRecord: d.rebind("INSERT INTO records (collection_id, data) VALUES (?, ?) RETURNING id"),
		selectRecord: d.rebind("SELECT id, collection_id, data FROM records WHERE collection_id = ? AND id = ?"),
		listRecords:  d.rebind("SELECT id, collection_id, data FROM records WHERE collection_id = ? ORDER BY id"),
		updateRecord: d.rebind("UPDATE records SET data = ? WHERE collection_id = ? AND id = ?"),
		deleteRecord: d.rebind("DELETE FROM records WHERE collection_id = ? AND id = ?"),
	}
}
