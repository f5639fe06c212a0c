package matrix

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Global is the axis value that asks Argmax and Argmin to reduce over every element.
const Global = -1

// Argmax returns the indices of the maximal elements of a 2D array.
//
// With axis == Global the result has one element: the flat (row major) index of the first
// maximum. With axis == 0 the result has one index per column (the row holding the column
// maximum), and with axis == 1 one index per row. Ties resolve to the lowest index.
func Argmax(a *tensor.Dense, axis int) ([]int, error) {
	return argReduce(a, axis, func(x, best float32) bool { return x > best })
}

// Argmin is Argmax for minimal elements.
func Argmin(a *tensor.Dense, axis int) ([]int, error) {
	return argReduce(a, axis, func(x, best float32) bool { return x < best })
}

func argReduce(a *tensor.Dense, axis int, better func(x, best float32) bool) ([]int, error) {
	rows, cols := Dims(a)
	data := F32s(a)
	if len(data) == 0 {
		return nil, errors.New("arg reduction of an empty array")
	}
	switch axis {
	case Global:
		best := 0
		for i := 1; i < len(data); i++ {
			if better(data[i], data[best]) {
				best = i
			}
		}
		return []int{best}, nil
	case 0:
		retVal := make([]int, cols)
		for j := 0; j < cols; j++ {
			for i := 1; i < rows; i++ {
				if better(data[i*cols+j], data[retVal[j]*cols+j]) {
					retVal[j] = i
				}
			}
		}
		return retVal, nil
	case 1:
		retVal := make([]int, rows)
		for i := 0; i < rows; i++ {
			row := data[i*cols : (i+1)*cols]
			for j := 1; j < cols; j++ {
				if better(row[j], row[retVal[i]]) {
					retVal[i] = j
				}
			}
		}
		return retVal, nil
	}
	return nil, errors.Errorf("invalid axis %d for a 2D array", axis)
}

// Max returns the largest element of a, or -Inf when a is empty.
func Max(a []float32) float32 {
	retVal := math32.Inf(-1)
	for _, x := range a {
		if x > retVal {
			retVal = x
		}
	}
	return retVal
}

// LogSumExp computes log Σ exp(a) without overflow.
func LogSumExp(a []float32) float32 {
	m := Max(a)
	if math32.IsInf(m, 0) {
		return m
	}
	var s float32
	for _, x := range a {
		s += math32.Exp(x - m)
	}
	return m + math32.Log(s)
}
