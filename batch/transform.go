package batch

import (
	"strconv"
	"strings"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
	"gorgonia.org/vecf32"

	"github.com/gorgonia/boltzmann/internal/matrix"
)

// Transform rewrites a batch in place before it is handed out.
type Transform func(*tensor.Dense)

// Identity leaves the batch as it is.
func Identity(*tensor.Dense) {}

// Scale returns a Transform dividing every value by denominator.
func Scale(denominator float32) Transform {
	return func(a *tensor.Dense) { vecf32.Scale(matrix.F32s(a), 1/denominator) }
}

// BinarizeColor maps 8 bit intensities to {0, 1} by rounding x/255.
func BinarizeColor(a *tensor.Dense) {
	data := matrix.F32s(a)
	for i, x := range data {
		data[i] = math32.Floor(x/255 + 0.5)
	}
}

// BinaryToIsing maps {0, 1} to {-1, 1}.
func BinaryToIsing(a *tensor.Dense) {
	data := matrix.F32s(a)
	for i, x := range data {
		data[i] = 2*x - 1
	}
}

// ColorToIsing maps 8 bit intensities to {-1, 1}.
func ColorToIsing(a *tensor.Dense) {
	BinarizeColor(a)
	BinaryToIsing(a)
}

// ParseTransform returns the transform with the given name. "scale/N" divides by N; the empty
// name is the identity.
func ParseTransform(name string) (Transform, error) {
	switch strings.ToLower(name) {
	case "", "identity":
		return Identity, nil
	case "binarize_color":
		return BinarizeColor, nil
	case "binary_to_ising":
		return BinaryToIsing, nil
	case "color_to_ising":
		return ColorToIsing, nil
	}
	if d := strings.TrimPrefix(name, "scale/"); d != name {
		f, err := strconv.ParseFloat(d, 32)
		if err != nil || f == 0 {
			return nil, errors.Errorf("bad scale transform %q", name)
		}
		return Scale(float32(f)), nil
	}
	return nil, errors.Errorf("unknown transform %q", name)
}
