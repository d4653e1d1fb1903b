package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/go-sql-driver/mysql"
)

const defaultTable = "artifact_ledger"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

// SQLConfig selects the database and table.
type SQLConfig struct {
	DriverName string
	ConnInfo   string
	TableName  string
}

// SQL is a ledger backed by database/sql. The schema targets MySQL.
type SQL struct {
	table string
	db    *sql.DB
}

// NewSQL opens the database and creates the ledger table if it does not exist.
func NewSQL(cfg SQLConfig) (*SQL, error) {
	if cfg.TableName == "" {
		cfg.TableName = defaultTable
	}
	if !tableNameRe.MatchString(cfg.TableName) {
		return nil, fmt.Errorf("invalid table name %q", cfg.TableName)
	}
	if cfg.DriverName == "mysql" {
		dsn, err := mysqlDSN(cfg.ConnInfo)
		if err != nil {
			return nil, err
		}
		cfg.ConnInfo = dsn
	}
	db, err := sql.Open(cfg.DriverName, cfg.ConnInfo)
	if err != nil {
		return nil, err
	}
	return newSQLWithDB(db, cfg.TableName)
}

// mysqlDSN forces DATETIME columns to scan as time.Time in UTC.
func mysqlDSN(dsn string) (string, error) {
	c, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("ledger dsn: %w", err)
	}
	c.ParseTime = true
	c.Loc = time.UTC
	return c.FormatDSN(), nil
}

func newSQLWithDB(db *sql.DB, table string) (*SQL, error) {
	s := &SQL{table: table, db: db}
	if err := s.initTable(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQL) initTable(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id CHAR(36) NOT NULL PRIMARY KEY,
		model VARCHAR(128) NOT NULL,
		prec VARCHAR(32) NOT NULL,
		file VARCHAR(255) NOT NULL,
		sha256 CHAR(64) NOT NULL,
		size BIGINT NOT NULL,
		source VARCHAR(1024) NOT NULL,
		verified_at DATETIME NOT NULL,
		INDEX idx_model (model));`, s.table))
	return err
}

// Record inserts e.
func (s *SQL) Record(ctx context.Context, e Entry) error {
	fill(&e)
	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s (
		id, model, prec, file, sha256, size, source, verified_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?);`, s.table),
		e.ID, e.Model, e.Precision, e.File, e.SHA256, e.Size, e.Source,
		e.VerifiedAt.UTC(),
	)
	return err
}

// List returns entries for model (all when empty), most recent first.
func (s *SQL) List(ctx context.Context, model string) ([]Entry, error) {
	q := fmt.Sprintf(`SELECT id, model, prec, file, sha256, size, source, verified_at FROM %s`, s.table)
	var args []any
	if model != "" {
		q += ` WHERE model = ?`
		args = append(args, model)
	}
	q += ` ORDER BY verified_at DESC;`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Model, &e.Precision, &e.File, &e.SHA256, &e.Size, &e.Source, &e.VerifiedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (s *SQL) Close() error { return s.db.Close() }
