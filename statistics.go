package boltzmann

import (
	"encoding/csv"
	"io"
	"os"
	"sort"
	"strconv"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
)

// Record is one monitor check.
type Record struct {
	Epoch     int
	Minibatch int
	Values    map[string]float32
}

// Statistics is the history of the monitor checks of an Experiment.
type Statistics struct {
	Names   []string // metrics in order of first appearance
	Records []Record
}

func makeStatistics() Statistics {
	return Statistics{
		Names:   make([]string, 0, 8),
		Records: make([]Record, 0, 64),
	}
}

func (s *Statistics) update(epoch, minibatch int, values map[string]float32) {
	fresh := make([]string, 0, len(values))
	vals := make(map[string]float32, len(values))
	for name, v := range values {
		vals[name] = v
		if s.index(name) < 0 {
			fresh = append(fresh, name)
		}
	}
	sort.Strings(fresh)
	s.Names = append(s.Names, fresh...)
	s.Records = append(s.Records, Record{Epoch: epoch, Minibatch: minibatch, Values: vals})
}

func (s *Statistics) index(name string) int {
	for i, n := range s.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Series returns the recorded values of a metric, NaN where a check did not report it.
func (s *Statistics) Series(name string) []float32 {
	retVal := make([]float32, len(s.Records))
	for i, r := range s.Records {
		v, ok := r.Values[name]
		if !ok {
			v = math32.NaN()
		}
		retVal[i] = v
	}
	return retVal
}

// WriteCSV writes a header of epoch, minibatch and the metric names, followed by a line per check.
func (s *Statistics) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	header := append([]string{"epoch", "minibatch"}, s.Names...)
	if err := cw.Write(header); err != nil {
		return errors.WithStack(err)
	}
	for _, r := range s.Records {
		record := make([]string, len(header))
		record[0] = strconv.Itoa(r.Epoch)
		record[1] = strconv.Itoa(r.Minibatch)
		for i, name := range s.Names {
			if v, ok := r.Values[name]; ok {
				record[i+2] = strconv.FormatFloat(float64(v), 'g', 6, 32)
			}
		}
		if err := cw.Write(record); err != nil {
			return errors.WithStack(err)
		}
	}
	cw.Flush()
	return errors.WithStack(cw.Error())
}

// Dump writes the history as CSV into filename.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	if err = s.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return errors.WithStack(f.Close())
}
