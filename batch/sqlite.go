package batch

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	_ "modernc.org/sqlite"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/random"
)

// SQLite is a dataset stored on disk, one row per record, read a batch at a time. Rows are
// assigned to a split, and shuffled, when they are written by Import; reading is sequential.
type SQLite struct {
	db        *sql.DB
	table     string
	cols      int
	conf      Config
	transform Transform
	cursor
}

// Import writes the rows of data into table, creating it if needed and replacing its
// contents. The rows are shuffled with src when conf.Shuffle is set.
func Import(ctx context.Context, path, table string, data *tensor.Dense, conf Config, src *random.Source) error {
	if !conf.IsValid() {
		return errors.Errorf("invalid batch config %+v", conf)
	}
	if len(data.Shape()) != 2 {
		return errors.Errorf("expected a matrix of rows, got shape %v", data.Shape())
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	rows, cols := matrix.Dims(data)
	order := make([]int, rows)
	for i := range order {
		order[i] = i
	}
	if conf.Shuffle {
		order = src.Perm(rows)
	}
	ntrain, _ := conf.sizes(rows)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err = createTable(ctx, tx, table); err != nil {
		_ = tx.Rollback()
		return err
	}
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(`INSERT INTO %q (split, pos, cols, payload) VALUES (?, ?, ?, ?)`, table))
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()
	for i, r := range order {
		split, pos := Train, i
		if i >= ntrain {
			split, pos = Validate, i-ntrain
		}
		if _, err = stmt.ExecContext(ctx, int(split), pos, cols, encodeRow(matrix.Row(data, r))); err != nil {
			_ = tx.Rollback()
			return errors.Wrapf(err, "insert row %d", i)
		}
	}
	return tx.Commit()
}

// OpenSQLite opens a table written by Import.
func OpenSQLite(ctx context.Context, path, table string, conf Config) (*SQLite, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid batch config %+v", conf)
	}
	transform, err := ParseTransform(conf.Transform)
	if err != nil {
		return nil, err
	}
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	s := &SQLite{
		db:        db,
		table:     table,
		conf:      conf,
		transform: transform,
	}
	for _, split := range []Split{Train, Validate} {
		var n int
		q := fmt.Sprintf(`SELECT COUNT(*) FROM %q WHERE split = ?`, table)
		if err = db.QueryRowContext(ctx, q, int(split)).Scan(&n); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, "count %v rows of %s", split, table)
		}
		s.size[split] = n
	}
	q := fmt.Sprintf(`SELECT cols FROM %q LIMIT 1`, table)
	if err = db.QueryRowContext(ctx, q).Scan(&s.cols); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "read the width of %s", table)
	}
	return s, nil
}

// Get implements Batch.
func (s *SQLite) Get(split Split) (*tensor.Dense, error) {
	if err := checkSplit(split); err != nil {
		return nil, err
	}
	start, ok := s.next(split, s.conf.BatchSize)
	if !ok {
		return nil, ErrEndOfEpoch
	}
	q := fmt.Sprintf(`SELECT payload FROM %q WHERE split = ? AND pos >= ? AND pos < ? ORDER BY pos`, s.table)
	rows, err := s.db.QueryContext(context.Background(), q, int(split), start, start+s.conf.BatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	backing := make([]float32, 0, s.conf.BatchSize*s.cols)
	for rows.Next() {
		var payload []byte
		if err = rows.Scan(&payload); err != nil {
			return nil, err
		}
		row, err := decodeRow(payload)
		if err != nil {
			return nil, err
		}
		if len(row) != s.cols {
			return nil, errors.Errorf("%s: row of %d columns in a table of %d", s.table, len(row), s.cols)
		}
		backing = append(backing, row...)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	if len(backing) != s.conf.BatchSize*s.cols {
		return nil, errors.Errorf("%s: short read at %v row %d", s.table, split, start)
	}
	retVal := matrix.New(backing, s.conf.BatchSize, s.cols)
	s.transform(retVal)
	return retVal, nil
}

// Reset implements Batch.
func (s *SQLite) Reset(split Split) { s.reset(split) }

// Cols implements Batch.
func (s *SQLite) Cols() int { return s.cols }

// BatchSize implements Batch.
func (s *SQLite) BatchSize() int { return s.conf.BatchSize }

// Rows returns the number of rows in split.
func (s *SQLite) Rows(split Split) int { return s.size[split] }

// Close implements Batch.
func (s *SQLite) Close() error { return s.db.Close() }

func openDB(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func createTable(ctx context.Context, tx *sql.Tx, table string) error {
	stmts := []string{
		fmt.Sprintf(`DROP TABLE IF EXISTS %q`, table),
		fmt.Sprintf(`CREATE TABLE %q (
			split INTEGER NOT NULL,
			pos INTEGER NOT NULL,
			cols INTEGER NOT NULL,
			payload BLOB NOT NULL,
			PRIMARY KEY (split, pos)
		)`, table),
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return errors.Wrapf(err, "create table %s", table)
		}
	}
	return nil
}

// encodeRow packs a row as little endian float32s.
func encodeRow(row []float32) []byte {
	retVal := make([]byte, 4*len(row))
	for i, x := range row {
		binary.LittleEndian.PutUint32(retVal[4*i:], math.Float32bits(x))
	}
	return retVal
}

func decodeRow(payload []byte) ([]float32, error) {
	if len(payload)%4 != 0 {
		return nil, errors.Errorf("corrupt row of %d bytes", len(payload))
	}
	retVal := make([]float32, len(payload)/4)
	for i := range retVal {
		retVal[i] = math.Float32frombits(binary.LittleEndian.Uint32(payload[4*i:]))
	}
	return retVal, nil
}
