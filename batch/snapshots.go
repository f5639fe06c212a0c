package batch

import (
	"context"
	"database/sql"
	"encoding/gob"

	"github.com/pkg/errors"
)

// Snapshots stores gob encoded checkpoints of a model, keyed by epoch, in a SQLite database.
type Snapshots struct {
	db *sql.DB
}

// OpenSnapshots opens (and if needed creates) the checkpoint table in the database at path.
func OpenSnapshots(ctx context.Context, path string) (*Snapshots, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}
	if _, err = db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS snapshots (
			epoch INTEGER PRIMARY KEY,
			payload BLOB NOT NULL
		)
	`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create snapshots table")
	}
	return &Snapshots{db: db}, nil
}

// Save stores the checkpoint of an epoch, replacing an older one.
func (s *Snapshots) Save(ctx context.Context, epoch int, m gob.GobEncoder) error {
	payload, err := m.GobEncode()
	if err != nil {
		return errors.Wrapf(err, "encode epoch %d", epoch)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snapshots (epoch, payload)
		VALUES (?, ?)
		ON CONFLICT(epoch) DO UPDATE SET payload = excluded.payload
	`, epoch, payload)
	return err
}

// Load decodes the checkpoint of an epoch into m. It returns false if there is none.
func (s *Snapshots) Load(ctx context.Context, epoch int, m gob.GobDecoder) (bool, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE epoch = ?`, epoch).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	if err = m.GobDecode(payload); err != nil {
		return false, errors.Wrapf(err, "decode epoch %d", epoch)
	}
	return true, nil
}

// Epochs lists the stored checkpoints in increasing order.
func (s *Snapshots) Epochs(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT epoch FROM snapshots ORDER BY epoch`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var retVal []int
	for rows.Next() {
		var e int
		if err = rows.Scan(&e); err != nil {
			return nil, err
		}
		retVal = append(retVal, e)
	}
	return retVal, rows.Err()
}

// Close closes the database.
func (s *Snapshots) Close() error { return s.db.Close() }
