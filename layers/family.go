package layers

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Family is the exponential family a layer's units are drawn from.
type Family int

const (
	Bernoulli Family = iota
	Gaussian
	Exponential
	Ising

	MAXFAMILY
)

func (f Family) String() string {
	switch f {
	case Bernoulli:
		return "Bernoulli"
	case Gaussian:
		return "Gaussian"
	case Exponential:
		return "Exponential"
	case Ising:
		return "Ising"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// ParseFamily parses the (case insensitive) name of a family.
func ParseFamily(s string) (Family, error) {
	for f := Bernoulli; f < MAXFAMILY; f++ {
		if strings.EqualFold(s, f.String()) {
			return f, nil
		}
	}
	return MAXFAMILY, errors.Errorf("unknown layer family %q", s)
}

// MarshalText implements encoding.TextMarshaler so that families read nicely in configs.
func (f Family) MarshalText() ([]byte, error) { return []byte(strings.ToLower(f.String())), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(text []byte) (err error) {
	*f, err = ParseFamily(string(text))
	return
}
