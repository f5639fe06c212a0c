package batch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorgonia.org/tensor"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/random"
)

// counting returns a (rows, 2) matrix whose ith row is [i, -i].
func counting(rows int) *tensor.Dense {
	backing := make([]float32, 2*rows)
	for i := 0; i < rows; i++ {
		backing[2*i] = float32(i)
		backing[2*i+1] = -float32(i)
	}
	return matrix.New(backing, rows, 2)
}

func firstCol(a *tensor.Dense) []float32 {
	rows, _ := matrix.Dims(a)
	retVal := make([]float32, rows)
	for i := range retVal {
		retVal[i] = matrix.Row(a, i)[0]
	}
	return retVal
}

// drain reads a split until the end of the epoch and returns the first column of every row.
func drain(t *testing.T, b Batch, split Split) []float32 {
	var retVal []float32
	for {
		x, err := b.Get(split)
		if err == ErrEndOfEpoch {
			return retVal
		}
		require.NoError(t, err)
		assert.Equal(t, tensor.Shape{b.BatchSize(), b.Cols()}, x.Shape())
		retVal = append(retVal, firstCol(x)...)
	}
}

func sequential() Config {
	return Config{BatchSize: 2, TrainFraction: 0.8}
}

func TestTable(t *testing.T) {
	tbl, err := NewTable(counting(10), sequential(), random.New(1))
	require.NoError(t, err)
	assert.Equal(t, 8, tbl.Rows(Train))
	assert.Equal(t, 2, tbl.Rows(Validate))
	assert.Equal(t, 2, tbl.Cols())

	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, drain(t, tbl, Train))
	assert.Equal(t, []float32{8, 9}, drain(t, tbl, Validate))

	// the end of an epoch rewinds the split
	x, err := tbl.Get(Train)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, firstCol(x))

	x, err = tbl.Get(Train)
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 3}, firstCol(x))
	tbl.Reset(Train)
	x, err = tbl.Get(Train)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1}, firstCol(x))

	_, err = tbl.Get(Split(7))
	assert.Error(t, err)
}

func TestSplitSizes(t *testing.T) {
	cases := []struct {
		fraction     float32
		rows         int
		ntrain, nval int
	}{
		{0.5, 7, 4, 3}, // a fractional row goes to training
		{0.9, 100, 90, 10},
		{0.1, 100, 10, 90},
		{0.8, 10, 8, 2},
		{0.9, 1000, 900, 100},
		{0.34, 3, 2, 1},
		{1, 5, 5, 0},
	}
	for _, c := range cases {
		ntrain, nval := Config{BatchSize: 1, TrainFraction: c.fraction}.sizes(c.rows)
		assert.Equal(t, c.ntrain, ntrain, "%v of %d rows", c.fraction, c.rows)
		assert.Equal(t, c.nval, nval, "%v of %d rows", c.fraction, c.rows)
	}

	tbl, err := NewTable(counting(7), Config{BatchSize: 1, TrainFraction: 0.5}, random.New(1))
	require.NoError(t, err)
	assert.Equal(t, 4, tbl.Rows(Train))
	assert.Equal(t, 3, tbl.Rows(Validate))
}

func TestTablePartialBatch(t *testing.T) {
	conf := sequential()
	conf.BatchSize = 3
	tbl, err := NewTable(counting(10), conf, random.New(1))
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5}, drain(t, tbl, Train))
	assert.Empty(t, drain(t, tbl, Validate))
}

func TestTableShuffle(t *testing.T) {
	conf := sequential()
	conf.Shuffle = true
	read := func(seed int64) []float32 {
		tbl, err := NewTable(counting(10), conf, random.New(seed))
		require.NoError(t, err)
		return append(drain(t, tbl, Train), drain(t, tbl, Validate)...)
	}
	a, b := read(42), read(42)
	assert.Equal(t, a, b)

	seen := make(map[float32]bool)
	for _, x := range a {
		seen[x] = true
	}
	assert.Len(t, seen, 10, "a shuffle must be a permutation of the rows")
}

func TestInvalidConfig(t *testing.T) {
	bad := []Config{
		{BatchSize: 0, TrainFraction: 0.5},
		{BatchSize: 1, TrainFraction: 0},
		{BatchSize: 1, TrainFraction: 1.5},
		{BatchSize: 1, TrainFraction: 0.5, Transform: "nope"},
	}
	for _, c := range bad {
		assert.False(t, c.IsValid(), "%+v", c)
		_, err := NewTable(counting(4), c, random.New(1))
		assert.Error(t, err)
	}
	assert.True(t, DefaultConfig().IsValid())
}

func TestTransforms(t *testing.T) {
	x := matrix.Vec([]float32{0, 100, 128, 255})
	BinarizeColor(x)
	assert.Equal(t, []float32{0, 0, 1, 1}, matrix.F32s(x))

	x = matrix.Vec([]float32{0, 1, 1, 0})
	BinaryToIsing(x)
	assert.Equal(t, []float32{-1, 1, 1, -1}, matrix.F32s(x))

	x = matrix.Vec([]float32{0, 255})
	ColorToIsing(x)
	assert.Equal(t, []float32{-1, 1}, matrix.F32s(x))

	f, err := ParseTransform("scale/2")
	require.NoError(t, err)
	x = matrix.Vec([]float32{2, 4})
	f(x)
	assert.Equal(t, []float32{1, 2}, matrix.F32s(x))

	_, err = ParseTransform("scale/0")
	assert.Error(t, err)
}

func TestSQLite(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.db")
	require.NoError(t, Import(ctx, path, "noise", counting(10), sequential(), random.New(1)))

	db, err := OpenSQLite(ctx, path, "noise", sequential())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.Equal(t, 2, db.Cols())
	assert.Equal(t, 8, db.Rows(Train))
	assert.Equal(t, 2, db.Rows(Validate))
	assert.Equal(t, []float32{0, 1, 2, 3, 4, 5, 6, 7}, drain(t, db, Train))
	assert.Equal(t, []float32{8, 9}, drain(t, db, Validate))

	x, err := db.Get(Train)
	require.NoError(t, err)
	assert.Equal(t, []float32{0, 0, 1, -1}, matrix.F32s(x))
}

func TestSQLiteMatchesTable(t *testing.T) {
	ctx := context.Background()
	conf := sequential()
	conf.Transform = "binary_to_ising"
	data := Noise(20, 5, 0.5, random.New(3))

	path := filepath.Join(t.TempDir(), "data.db")
	require.NoError(t, Import(ctx, path, "noise", data, conf, random.New(1)))
	db, err := OpenSQLite(ctx, path, "noise", conf)
	require.NoError(t, err)
	defer db.Close()
	tbl, err := NewTable(data, conf, random.New(1))
	require.NoError(t, err)

	for {
		a, errA := tbl.Get(Train)
		b, errB := db.Get(Train)
		assert.Equal(t, errA, errB)
		if errA != nil {
			break
		}
		assert.Equal(t, matrix.F32s(a), matrix.F32s(b))
	}
}

type blob []byte

func (b blob) GobEncode() ([]byte, error) { return []byte(b), nil }

func (b *blob) GobDecode(p []byte) error {
	*b = append((*b)[:0], p...)
	return nil
}

func TestSnapshots(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSnapshots(ctx, filepath.Join(t.TempDir(), "snap.db"))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Save(ctx, 2, blob("two")))
	require.NoError(t, s.Save(ctx, 1, blob("one")))
	require.NoError(t, s.Save(ctx, 2, blob("TWO")))

	epochs, err := s.Epochs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, epochs)

	var b blob
	ok, err := s.Load(ctx, 2, &b)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "TWO", string(b))

	ok, err = s.Load(ctx, 3, &b)
	require.NoError(t, err)
	assert.False(t, ok)
}
