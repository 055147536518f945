package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"allthetropes/catwalk/internal/metrics"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// DefaultFilename is the SQLite file the CLI looks for and creates.
const DefaultFilename = "tropes.db"

// DB wraps the membership store connection
type DB struct {
	conn *sql.DB
	// Path is the SQLite file, empty for other drivers.
	Path    string
	driver  string
	policy  TitlePolicy
	metrics *metrics.Crawl
}

// Option configures a DB.
type Option func(*DB)

// WithTitlePolicy selects what happens when a known ID is upserted with a new title.
func WithTitlePolicy(p TitlePolicy) Option {
	return func(d *DB) { d.policy = p }
}

// WithMetrics records upsert outcomes.
func WithMetrics(m *metrics.Crawl) Option {
	return func(d *DB) { d.metrics = m }
}

// OpenDB opens a SQLite store at path with WAL mode and foreign keys enabled,
// creating the schema if needed.
func OpenDB(path string, opts ...Option) (*DB, error) {
	// Pragmas go in the DSN so every pooled connection gets them.
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	d, err := Open(DriverSQLite, dsn, opts...)
	if err != nil {
		return nil, err
	}
	d.Path = path
	return d, nil
}

// Open opens a store on any supported driver and creates the schema if needed.
func Open(driver, dsn string, opts ...Option) (*DB, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	case "postgres":
		driver = DriverPostgres
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	d := &DB{conn: conn, driver: driver, policy: KeepFirst}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.migrate(); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Driver returns the database/sql driver name in use.
func (d *DB) Driver() string {
	return d.driver
}

// Policy returns the title policy applied by Upsert.
func (d *DB) Policy() TitlePolicy {
	return d.policy
}

func (d *DB) migrate() error {
	for _, stmt := range schema(d.driver) {
		if _, err := d.conn.Exec(stmt); err != nil {
			return fmt.Errorf("creating schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres. Queries in this package
// never contain a literal question mark.
func (d *DB) rebind(query string) string {
	if d.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// schema returns the DDL for driver. Only members.category_id is a foreign
// key: member_id names a row in either tropes or categories, which a single
// REFERENCES clause cannot express. Upsert writes the member row in the same
// transaction as its edges instead.
func schema(driver string) []string {
	id := "INTEGER"
	if driver == DriverPostgres {
		id = "BIGINT"
	}
	return []string{
		`CREATE TABLE IF NOT EXISTS tropes (id ` + id + ` PRIMARY KEY, title TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS categories (id ` + id + ` PRIMARY KEY, title TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS members (
			category_id ` + id + ` NOT NULL REFERENCES categories(id),
			member_id ` + id + ` NOT NULL,
			PRIMARY KEY (category_id, member_id)
		)`,
		`CREATE INDEX IF NOT EXISTS members_member_id ON members(member_id)`,
	}
}
