// Package batch streams fixed size minibatches of rows out of a dataset that is split into a
// training and a validation part.
package batch

import (
	"math"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Split names one part of a dataset.
type Split int

const (
	Train Split = iota
	Validate
)

func (s Split) String() string {
	switch s {
	case Train:
		return "train"
	case Validate:
		return "validate"
	}
	return "unknown"
}

// ErrEndOfEpoch is returned by Get once every full batch of a split has been handed out. The
// split is reset when it is returned, so the next Get starts a new epoch.
var ErrEndOfEpoch = errors.New("end of epoch")

// Batch hands out minibatches of a dataset.
type Batch interface {
	// Get returns the next (BatchSize, Cols) minibatch of split, or ErrEndOfEpoch.
	Get(split Split) (*tensor.Dense, error)
	// Reset rewinds split to its first batch.
	Reset(split Split)
	// Cols is the number of columns of every row. It never changes.
	Cols() int
	// BatchSize is the number of rows returned by Get.
	BatchSize() int
	Close() error
}

// Config describes how a dataset is cut into batches.
type Config struct {
	BatchSize     int     `json:"batch_size"`
	TrainFraction float32 `json:"train_fraction"` // fraction of the rows used for training; the rest validate
	Shuffle       bool    `json:"shuffle"`        // shuffle the rows once before splitting
	Transform     string  `json:"transform"`      // name of a Transform applied to every batch
}

// DefaultConfig returns the configuration used by the examples: batches of 100 and a 90/10 split.
func DefaultConfig() Config {
	return Config{
		BatchSize:     100,
		TrainFraction: 0.9,
		Shuffle:       true,
	}
}

// IsValid reports whether the configuration can be used.
func (c Config) IsValid() bool {
	if c.BatchSize < 1 || c.TrainFraction <= 0 || c.TrainFraction > 1 {
		return false
	}
	_, err := ParseTransform(c.Transform)
	return err == nil
}

// sizes returns the number of training and validation rows. The training split rounds up;
// the slack absorbs the float32 error of TrainFraction so that 0.1 of 100 rows stays 10.
func (c Config) sizes(rows int) (ntrain, nval int) {
	x := float64(c.TrainFraction) * float64(rows)
	ntrain = int(math.Ceil(x * (1 - 1e-6)))
	if ntrain > rows {
		ntrain = rows
	}
	return ntrain, rows - ntrain
}

// cursor tracks the position of every split of a dataset.
type cursor struct {
	size [2]int
	pos  [2]int
}

// next returns the first row of the next full batch of split, or false at the end of an
// epoch, in which case the split is rewound.
func (c *cursor) next(split Split, batchSize int) (int, bool) {
	start := c.pos[split]
	if start+batchSize > c.size[split] {
		c.pos[split] = 0
		return 0, false
	}
	c.pos[split] += batchSize
	return start, true
}

func (c *cursor) reset(split Split) { c.pos[split] = 0 }

func checkSplit(s Split) error {
	if s != Train && s != Validate {
		return errors.Errorf("unknown split %d", int(s))
	}
	return nil
}
