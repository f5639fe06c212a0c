package boltzmann

import (
	"bytes"
	"fmt"
)

type manyErr []error

func (err manyErr) Error() string {
	var buf bytes.Buffer
	for _, e := range err {
		fmt.Fprintln(&buf, e.Error())
	}
	return buf.String()
}

// join returns nil, the only error, or a manyErr of the non nil errors.
func join(errs ...error) error {
	var me manyErr
	for _, err := range errs {
		if err != nil {
			me = append(me, err)
		}
	}
	switch len(me) {
	case 0:
		return nil
	case 1:
		return me[0]
	}
	return me
}
