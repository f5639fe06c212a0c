package models

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/vecf32"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/internal/matrix"
)

// InitMethod selects how Initialize sets the weights.
type InitMethod string

const (
	Hinton InitMethod = "hinton" // N(0, 1/size_i)
	Glorot InitMethod = "glorot" // N(0, 2/(size_i+size_j))
	Zero   InitMethod = "zero"
)

// Initialize sets the visible layer from the moments of the training split of data and draws
// the weights according to method. Hidden layers keep their defaults. The training split is
// read through once and left rewound.
func (m *Model) Initialize(data batch.Batch, method InitMethod) error {
	if data.Cols() != m.Layers[0].Len() {
		return shapeErr("initialize", []int{-1, m.Layers[0].Len()}, []int{-1, data.Cols()})
	}
	mean, variance, err := moments(data)
	if err != nil {
		return err
	}
	if err = m.Layers[0].Link(mean, variance); err != nil {
		return err
	}
	for _, w := range m.Weights {
		lower, upper := w.Shape()
		var std float32
		switch method {
		case Hinton:
			std = 1 / math32.Sqrt(float32(lower))
		case Glorot:
			std = math32.Sqrt(2 / float32(lower+upper))
		case Zero:
		default:
			return errors.Errorf("unknown initialization method %q", method)
		}
		ws := matrix.F32s(w.W)
		for j := range ws {
			ws[j] = 0
			if std > 0 {
				ws[j] = m.src.Normal(0, std)
			}
		}
	}
	m.EnforceConstraints()
	return nil
}

// moments returns the column means and variances of the training split.
func moments(data batch.Batch) (mean, variance []float32, err error) {
	data.Reset(batch.Train)
	cols := data.Cols()
	sum := make([]float32, cols)
	sumsq := make([]float32, cols)
	var n int
	for {
		x, err := data.Get(batch.Train)
		if err == batch.ErrEndOfEpoch {
			break
		}
		if err != nil {
			return nil, nil, err
		}
		rows, _ := matrix.Dims(x)
		for i := 0; i < rows; i++ {
			row := matrix.Row(x, i)
			vecf32.Add(sum, row)
			for j, v := range row {
				sumsq[j] += v * v
			}
		}
		n += rows
	}
	if n == 0 {
		return nil, nil, errors.New("initialize: the training split holds no full batch")
	}
	mean, variance = sum, sumsq
	vecf32.Scale(mean, 1/float32(n))
	vecf32.Scale(variance, 1/float32(n))
	for j := range variance {
		variance[j] -= mean[j] * mean[j]
		if variance[j] < 0 {
			variance[j] = 0
		}
	}
	return mean, variance, nil
}
