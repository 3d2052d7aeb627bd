package catalog

import (
	"database/sql"
	"encoding/json"
	"log"

	"github.com/BurntSushi/migration"

	"github.com/ndlib/gzstore/resource"
)

// An Index persists resource metadata, keyed by digest.
type Index interface {
	// Lookup returns the resource with the given digest, or nil if there
	// is none. Database errors are logged and treated as a miss.
	Lookup(digest string) *resource.Resource

	// Set adds or replaces the entry for res.
	Set(res *resource.Resource) error

	// Delete removes the entry for digest. It is not an error if there is
	// no such entry.
	Delete(digest string) error

	// ByCollection lists the digests of every resource in a collection.
	ByCollection(collection string) ([]string, error)
}

// decodeResource unserializes the json value column of a row.
func decodeResource(value string) *resource.Resource {
	var res = new(resource.Resource)
	err := json.Unmarshal([]byte(value), res)
	if err != nil {
		log.Printf("Index: error in lookup: %s", err.Error())
		return nil
	}
	return res
}

func scanDigests(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var result []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	return result, rows.Err()
}

// we need to adapt the migration version functions to work with MySQL and
// QL. This code is slightly modified from github.com/BurntSushi/migration

type dbVersion struct {
	// SQL to get the version of this db, returns one row and one column
	GetSQL string
	// SQL to insert a new version of this db. takes one parameter, the new
	// version
	SetSQL string
	// the SQL to create the version table for this db
	CreateSQL string
}

func (d dbVersion) Get(tx migration.LimitedTx) (int, error) {
	var version int
	r := tx.QueryRow(d.GetSQL)
	if err := r.Scan(&version); err != nil {
		// we assume error means there is no migration table
		log.Println(err.Error())
		return 0, nil
	}
	return version, nil
}

func (d dbVersion) Set(tx migration.LimitedTx, version int) error {
	if _, err := tx.Exec(d.SetSQL, version); err != nil {
		if _, err := tx.Exec(d.CreateSQL); err != nil {
			return err
		}
		_, err = tx.Exec(d.SetSQL, version)
		return err
	}
	return nil
}

// execlist exec's each item in the list, return if there is an error.
// Used to work around mysql driver not handling compound exec statements.
func execlist(tx migration.LimitedTx, stms []string) error {
	var err error
	for _, s := range stms {
		_, err = tx.Exec(s)
		if err != nil {
			break
		}
	}
	return err
}
