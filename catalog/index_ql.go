package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"

	_ "github.com/cznic/ql/driver"
	"github.com/pkg/errors"

	"github.com/ndlib/gzstore/resource"
)

// This file implements the resource index using the QL embedded database.
// It is intended for development and small single node installs.

type qlIndex struct {
	db *sql.DB
}

var _ Index = &qlIndex{}

var memCount int64

const qlResourceInit = `
	CREATE TABLE IF NOT EXISTS resources (
		digest string,
		collection string,
		created time,
		size int,
		value string
	);
	CREATE INDEX IF NOT EXISTS resourcedigest ON resources (digest);
	CREATE INDEX IF NOT EXISTS resourcecollection ON resources (collection);
`

// NewQlIndex makes a resource index backed by QL. filename is the name of
// the file to save the database to. The filename "memory" means to keep
// everything in memory.
func NewQlIndex(filename string) (Index, error) {
	var db *sql.DB
	var err error
	if filename == "memory" {
		// memory databases opened under the same name are shared
		n := atomic.AddInt64(&memCount, 1)
		db, err = sql.Open("ql-mem", fmt.Sprintf("mem%d.db", n))
	} else {
		db, err = sql.Open("ql", filename)
	}
	if err == nil {
		_, err = performExec(db, qlResourceInit)
	}
	if err != nil {
		log.Printf("Open QL: %s", err.Error())
		return nil, errors.Wrap(err, "open ql index")
	}
	return &qlIndex{db: db}, nil
}

func (qi *qlIndex) Lookup(digest string) *resource.Resource {
	const dbLookup = `SELECT value FROM resources WHERE digest == ?1 LIMIT 1`

	var value string
	err := qi.db.QueryRow(dbLookup, digest).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Printf("Index QL: %s", err.Error())
		}
		return nil
	}
	return decodeResource(value)
}

func (qi *qlIndex) Set(res *resource.Resource) error {
	const dbUpdate = `UPDATE resources SET collection = ?2, created = ?3, size = ?4, value = ?5 WHERE digest == ?1`
	const dbInsert = `INSERT INTO resources VALUES (?1, ?2, ?3, ?4, ?5)`

	value, err := json.Marshal(res)
	if err != nil {
		return err
	}
	args := []interface{}{res.Digest, res.Collection, res.Created, res.Size, string(value)}
	result, err := performExec(qi.db, dbUpdate, args...)
	if err != nil {
		return err
	}
	nrows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if nrows == 0 {
		// record didn't exist. create it
		_, err = performExec(qi.db, dbInsert, args...)
	}
	return err
}

func (qi *qlIndex) Delete(digest string) error {
	const query = `DELETE FROM resources WHERE digest == ?1`

	_, err := performExec(qi.db, query, digest)
	return err
}

func (qi *qlIndex) ByCollection(collection string) ([]string, error) {
	const query = `SELECT digest FROM resources WHERE collection == ?1 ORDER BY digest`

	rows, err := qi.db.Query(query, collection)
	if err != nil {
		return nil, err
	}
	return scanDigests(rows)
}

// QL requires every write to happen inside a transaction.
func performExec(db *sql.DB, query string, args ...interface{}) (sql.Result, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, err
	}
	var result sql.Result
	result, err = tx.Exec(query, args...)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	err = tx.Commit()
	return result, err
}
