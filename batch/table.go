package batch

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/random"
)

// Table is an in-memory dataset. Its rows are optionally shuffled once, then the first
// TrainFraction of them form the training split and the rest the validation split. Rows that
// do not fill a whole batch at the end of a split are not handed out.
type Table struct {
	data      *tensor.Dense
	conf      Config
	transform Transform
	cursor
}

// NewTable wraps a (rows, cols) array. The array is copied; src is only used to shuffle.
func NewTable(data *tensor.Dense, conf Config, src *random.Source) (*Table, error) {
	if !conf.IsValid() {
		return nil, errors.Errorf("invalid batch config %+v", conf)
	}
	if len(data.Shape()) != 2 {
		return nil, errors.Errorf("expected a matrix of rows, got shape %v", data.Shape())
	}
	transform, err := ParseTransform(conf.Transform)
	if err != nil {
		return nil, err
	}
	t := &Table{
		data:      matrix.Clone(data),
		conf:      conf,
		transform: transform,
	}
	if conf.Shuffle {
		shuffleRows(t.data, src)
	}
	rows, _ := matrix.Dims(t.data)
	t.size[Train], t.size[Validate] = conf.sizes(rows)
	return t, nil
}

// Get implements Batch.
func (t *Table) Get(split Split) (*tensor.Dense, error) {
	if err := checkSplit(split); err != nil {
		return nil, err
	}
	start, ok := t.next(split, t.conf.BatchSize)
	if !ok {
		return nil, ErrEndOfEpoch
	}
	if split == Validate {
		start += t.size[Train]
	}
	cols := t.Cols()
	backing := make([]float32, t.conf.BatchSize*cols)
	copy(backing, matrix.F32s(t.data)[start*cols:])
	retVal := matrix.New(backing, t.conf.BatchSize, cols)
	t.transform(retVal)
	return retVal, nil
}

// Reset implements Batch.
func (t *Table) Reset(split Split) { t.reset(split) }

// Cols implements Batch.
func (t *Table) Cols() int { return t.data.Shape()[1] }

// BatchSize implements Batch.
func (t *Table) BatchSize() int { return t.conf.BatchSize }

// Rows returns the number of rows in split.
func (t *Table) Rows(split Split) int { return t.size[split] }

// Close implements Batch. It is a no-op.
func (t *Table) Close() error { return nil }

// Noise returns a (rows, cols) array of Bernoulli(p) draws.
func Noise(rows, cols int, p float32, src *random.Source) *tensor.Dense {
	retVal := matrix.Zeros(rows, cols)
	data := matrix.F32s(retVal)
	for i := range data {
		if src.Bernoulli(p) {
			data[i] = 1
		}
	}
	return retVal
}

// shuffleRows permutes the rows of a matrix in place (Fisher-Yates).
func shuffleRows(a *tensor.Dense, src *random.Source) {
	rows, cols := matrix.Dims(a)
	tmp := make([]float32, cols)
	for i := rows - 1; i > 0; i-- {
		j := src.Intn(i + 1)
		rowI := matrix.Row(a, i)
		rowJ := matrix.Row(a, j)
		copy(tmp, rowI)
		copy(rowI, rowJ)
		copy(rowJ, tmp)
	}
}
