package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store persists the trust graph snapshot
type Store struct {
	db     *sql.DB
	q      querier
	driver string
}

// NewStore opens (or creates) the database and initializes the schema.
// For sqlite3 the dsn is a file path.
func NewStore(driver, dsn string) (*Store, error) {
	if driver == DriverSQLite {
		dsn += "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if driver == DriverSQLite {
		// A single writer avoids SQLITE_BUSY under concurrent flushes
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, q: db, driver: driver}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates tables and indices if they don't exist
func (s *Store) initSchema() error {
	pk := "INTEGER PRIMARY KEY AUTOINCREMENT"
	ts := "TIMESTAMP DEFAULT CURRENT_TIMESTAMP"
	if s.driver == DriverPostgres {
		pk = "SERIAL PRIMARY KEY"
		ts = "TIMESTAMPTZ DEFAULT now()"
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			node_id ` + pk + `,
			domain_name TEXT UNIQUE NOT NULL,
			url TEXT NOT NULL DEFAULT '',
			kind TEXT NOT NULL DEFAULT 'publisher',
			status TEXT NOT NULL DEFAULT 'discovered',
			attr_count INTEGER DEFAULT 0,
			created_at ` + ts + `
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			edge_id ` + pk + `,
			from_node_id INTEGER NOT NULL REFERENCES nodes(node_id),
			to_node_id INTEGER REFERENCES nodes(node_id),
			attribute TEXT NOT NULL,
			target_url TEXT NOT NULL,
			weight INTEGER DEFAULT 1,
			UNIQUE(from_node_id, attribute, target_url)
		)`,
		`CREATE TABLE IF NOT EXISTS redirects (
			redirect_id ` + pk + `,
			requested_url TEXT NOT NULL,
			final_url TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS crawl_errors (
			error_id ` + pk + `,
			source_url TEXT NOT NULL,
			attribute TEXT NOT NULL,
			target_url TEXT NOT NULL,
			kind TEXT NOT NULL,
			detail TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_domain ON nodes(domain_name)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_from ON edges(from_node_id)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_node_id)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// InTx runs fn against a Store bound to a single transaction
func (s *Store) InTx(ctx context.Context, fn func(tx *Store) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(&Store{db: s.db, q: sqlTx, driver: s.driver}); err != nil {
		sqlTx.Rollback()
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// UpsertNode inserts a node or refreshes its mutable columns if the domain exists.
// Returns the node_id of the inserted/existing node
func (s *Store) UpsertNode(ctx context.Context, n Node) (int, error) {
	_, err := s.q.ExecContext(ctx, s.rebind(`
		INSERT INTO nodes (domain_name, url, kind, status, attr_count)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(domain_name) DO UPDATE SET
			url = EXCLUDED.url,
			kind = EXCLUDED.kind,
			status = EXCLUDED.status,
			attr_count = EXCLUDED.attr_count
	`), n.DomainName, n.URL, string(n.Kind), string(n.Status), n.AttrCount)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert node: %w", err)
	}

	var nodeID int
	err = s.q.QueryRowContext(ctx, s.rebind("SELECT node_id FROM nodes WHERE domain_name = ?"), n.DomainName).Scan(&nodeID)
	if err != nil {
		return 0, fmt.Errorf("failed to retrieve node_id: %w", err)
	}

	return nodeID, nil
}

// GetNode retrieves a node by domain name, returns nil if not found
func (s *Store) GetNode(ctx context.Context, domainName string) (*Node, error) {
	var node Node
	var kind, status string
	err := s.q.QueryRowContext(ctx, s.rebind(`
		SELECT node_id, domain_name, url, kind, status, attr_count, created_at
		FROM nodes
		WHERE domain_name = ?
	`), domainName).Scan(&node.NodeID, &node.DomainName, &node.URL, &kind, &status, &node.AttrCount, &node.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	node.Kind = NodeKind(kind)
	node.Status = NodeStatus(status)
	return &node, nil
}

// UpsertEdge inserts a new edge or increments weight if it exists.
// toID is zero for references that are not graph nodes (mailto:, tel:).
func (s *Store) UpsertEdge(ctx context.Context, fromID, toID int, e Edge) error {
	to := sql.NullInt64{Int64: int64(toID), Valid: toID > 0}

	_, err := s.q.ExecContext(ctx, s.rebind(`
		INSERT INTO edges (from_node_id, to_node_id, attribute, target_url, weight)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(from_node_id, attribute, target_url) DO UPDATE SET
			weight = edges.weight + 1
	`), fromID, to, string(e.Attribute), e.Target)
	if err != nil {
		return fmt.Errorf("failed to upsert edge: %w", err)
	}
	return nil
}

// InsertRedirect appends a redirect row
func (s *Store) InsertRedirect(ctx context.Context, r Redirect) error {
	_, err := s.q.ExecContext(ctx, s.rebind(
		"INSERT INTO redirects (requested_url, final_url) VALUES (?, ?)"),
		r.RequestedURL, r.FinalURL)
	if err != nil {
		return fmt.Errorf("failed to insert redirect: %w", err)
	}
	return nil
}

// InsertError appends an error row
func (s *Store) InsertError(ctx context.Context, e ErrorRecord) error {
	_, err := s.q.ExecContext(ctx, s.rebind(
		"INSERT INTO crawl_errors (source_url, attribute, target_url, kind, detail) VALUES (?, ?, ?, ?, ?)"),
		e.Source, e.Attribute, e.Target, string(e.Kind), e.Detail)
	if err != nil {
		return fmt.Errorf("failed to insert error: %w", err)
	}
	return nil
}

// EdgeWeights returns target_url -> weight for every edge leaving domainName with attr
func (s *Store) EdgeWeights(ctx context.Context, domainName string, attr string) (map[string]int, error) {
	rows, err := s.q.QueryContext(ctx, s.rebind(`
		SELECT e.target_url, e.weight
		FROM edges e
		JOIN nodes n ON n.node_id = e.from_node_id
		WHERE n.domain_name = ? AND e.attribute = ?
	`), domainName, attr)
	if err != nil {
		return nil, fmt.Errorf("failed to load edges: %w", err)
	}
	defer rows.Close()

	weights := make(map[string]int)
	for rows.Next() {
		var target string
		var weight int
		if err := rows.Scan(&target, &weight); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		weights[target] = weight
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating edges: %w", err)
	}
	return weights, nil
}

// CountRows returns the number of rows in one of the snapshot tables
func (s *Store) CountRows(ctx context.Context, table string) (int, error) {
	switch table {
	case "nodes", "edges", "redirects", "crawl_errors":
	default:
		return 0, fmt.Errorf("unknown table %q", table)
	}

	var n int
	if err := s.q.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// rebind rewrites '?' placeholders to '$N' for PostgreSQL
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
