package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/random"
)

var stdout io.Writer = os.Stdout

func runImport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	csvPath := fs.String("csv", "", "CSV file of numeric rows, without a header")
	rows := fs.Int("noise-rows", 0, "rows of Bernoulli noise to generate instead of reading a CSV")
	cols := fs.Int("noise-cols", 0, "columns of generated noise")
	p := fs.Float64("noise-p", 0.5, "probability of a one in generated noise")
	dbPath := fs.String("db", "boltz.db", "sqlite database path")
	table := fs.String("table", "data", "table to (re)create")
	trainFraction := fs.Float64("train-fraction", 0.9, "fraction of rows in the training split")
	shuffle := fs.Bool("shuffle", true, "shuffle the rows before splitting")
	seed := fs.Int64("seed", 1, "rng seed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	src := random.New(*seed)
	var data *tensor.Dense
	switch {
	case *csvPath != "":
		var err error
		if data, err = readCSV(*csvPath); err != nil {
			return err
		}
	case *rows > 0 && *cols > 0:
		data = batch.Noise(*rows, *cols, float32(*p), src.Split())
	default:
		return usageError("import needs -csv or -noise-rows and -noise-cols")
	}

	conf := batch.DefaultConfig()
	conf.TrainFraction = float32(*trainFraction)
	conf.Shuffle = *shuffle
	if err := batch.Import(ctx, *dbPath, *table, data, conf, src.Split()); err != nil {
		return errors.WithMessage(err, "import")
	}
	shp := data.Shape()
	fmt.Fprintf(stdout, "imported %d rows of %d columns into %s:%s\n", shp[0], shp[1], *dbPath, *table)
	return nil
}

// readCSV reads a file of rows of numbers into a (rows, cols) tensor.
func readCSV(path string) (*tensor.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.ReuseRecord = true
	var backing []float32
	var rows, cols int
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", path)
		}
		if rows == 0 {
			cols = len(record)
		}
		for j, field := range record {
			x, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: row %d, column %d", path, rows+1, j+1)
			}
			backing = append(backing, float32(x))
		}
		rows++
	}
	if rows == 0 {
		return nil, errors.Errorf("%s holds no rows", path)
	}
	return tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing)), nil
}
