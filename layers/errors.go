package layers

import (
	"fmt"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// ShapeError is returned when the dimensions of parameters, batches or chain states disagree.
// It always indicates a programming or configuration error.
type ShapeError struct {
	Op   string
	Want tensor.Shape
	Got  tensor.Shape
}

func (err *ShapeError) Error() string {
	return fmt.Sprintf("%s: shape mismatch: expected %v, got %v", err.Op, err.Want, err.Got)
}

// DomainError is returned when a computed or sampled parameter leaves the valid domain of its
// family, e.g. a non positive exponential rate. It usually means the learning rate is too large.
type DomainError struct {
	Family Family
	Param  string
	Index  int
	Value  float32
}

func (err *DomainError) Error() string {
	return fmt.Sprintf("%v layer: %s[%d] = %v is outside the domain of the family", err.Family, err.Param, err.Index, err.Value)
}

func shapeErr(op string, want, got tensor.Shape) error {
	return errors.WithStack(&ShapeError{Op: op, Want: want.Clone(), Got: got.Clone()})
}

func domainErr(f Family, param string, index int, value float32) error {
	return errors.WithStack(&DomainError{Family: f, Param: param, Index: index, Value: value})
}

// IsShapeError reports whether err is, or wraps, a *ShapeError.
func IsShapeError(err error) bool {
	var se *ShapeError
	return errors.As(err, &se)
}

// IsDomainError reports whether err is, or wraps, a *DomainError.
func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}
