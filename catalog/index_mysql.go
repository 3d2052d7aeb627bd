package catalog

import (
	"database/sql"
	"encoding/json"
	"log"

	"github.com/BurntSushi/migration"
	"github.com/go-sql-driver/mysql"
	"github.com/pkg/errors"

	"github.com/ndlib/gzstore/resource"
)

// implements the Index interface using MySQL as the backing store.
type mysqlIndex struct {
	db *sql.DB
}

var _ Index = &mysqlIndex{}

// List of migrations to perform. Add new ones to the end.
// DO NOT change the order of items already in this list.
var mysqlMigrations = []migration.Migrator{
	mysqlschema1,
	mysqlschema2,
}

var mysqlVersioning = dbVersion{
	GetSQL:    `SELECT max(version) FROM migration_version`,
	SetSQL:    `INSERT INTO migration_version (version, applied) VALUES (?, now())`,
	CreateSQL: `CREATE TABLE migration_version (version INTEGER, applied datetime)`,
}

// NewMysqlIndex connects to a MySQL database, bringing the schema up to
// date, and returns an Index using it. dial is a DSN in the format the
// go-sql-driver expects, e.g. "user:pass@tcp(localhost:3306)/gzstore".
func NewMysqlIndex(dial string) (Index, error) {
	if _, err := mysql.ParseDSN(dial); err != nil {
		return nil, errors.Wrap(err, "mysql dial")
	}
	db, err := migration.OpenWith(
		"mysql",
		dial,
		mysqlMigrations,
		mysqlVersioning.Get,
		mysqlVersioning.Set)
	if err != nil {
		log.Printf("Open Mysql: %s", err.Error())
		return nil, err
	}
	return &mysqlIndex{db: db}, nil
}

func (mi *mysqlIndex) Lookup(digest string) *resource.Resource {
	const dbLookup = `SELECT value FROM resources WHERE digest = ? LIMIT 1`

	var value string
	err := mi.db.QueryRow(dbLookup, digest).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			// some kind of error...treat it as a miss
			log.Printf("Index: %s", err.Error())
		}
		return nil
	}
	return decodeResource(value)
}

func (mi *mysqlIndex) Set(res *resource.Resource) error {
	value, err := json.Marshal(res)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO resources (digest, collection, created, size, media_type, value)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE collection=?, created=?, size=?, media_type=?, value=?`

	_, err = mi.db.Exec(stmt,
		res.Digest, res.Collection, res.Created, res.Size, res.MediaType, value,
		res.Collection, res.Created, res.Size, res.MediaType, value)
	return err
}

func (mi *mysqlIndex) Delete(digest string) error {
	_, err := mi.db.Exec(`DELETE FROM resources WHERE digest = ?`, digest)
	return err
}

func (mi *mysqlIndex) ByCollection(collection string) ([]string, error) {
	const query = `SELECT digest FROM resources WHERE collection = ? ORDER BY digest`

	rows, err := mi.db.Query(query, collection)
	if err != nil {
		return nil, err
	}
	return scanDigests(rows)
}

// database migrations. each one is a go function. Add them to the
// list mysqlMigrations at top of this file for them to be run.

func mysqlschema1(tx migration.LimitedTx) error {
	var s = []string{
		`CREATE TABLE IF NOT EXISTS resources (
		id int PRIMARY KEY AUTO_INCREMENT,
		digest varchar(64),
		collection varchar(255),
		created datetime,
		size BIGINT,
		value LONGTEXT,
		UNIQUE INDEX resources_digest (digest))`,
	}
	return execlist(tx, s)
}

func mysqlschema2(tx migration.LimitedTx) error {
	var s = []string{
		`ALTER TABLE resources ADD COLUMN media_type varchar(255) AFTER size`,
		`CREATE INDEX resources_collection ON resources (collection)`,
	}
	return execlist(tx, s)
}
