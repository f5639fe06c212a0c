package models

import (
	"bytes"
	"encoding/gob"
	"os"

	"github.com/pkg/errors"

	"github.com/gorgonia/boltzmann/internal/matrix"
	"github.com/gorgonia/boltzmann/random"
)

// GobEncode writes the topology of the model followed by every parameter.
func (m *Model) GobEncode() (retVal []byte, err error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err = enc.Encode(m.Config()); err != nil {
		return nil, err
	}
	for _, p := range m.params {
		if err = enc.Encode(matrix.F32s(p.value)); err != nil {
			return nil, errors.Wrapf(err, "encode %v", p)
		}
	}
	return buf.Bytes(), nil
}

// GobDecode rebuilds the model from the output of GobEncode. The random source of the model,
// if it has one, is kept; otherwise it must be set with SetSource before sampling.
func (m *Model) GobDecode(buf []byte) error {
	dec := gob.NewDecoder(bytes.NewBuffer(buf))
	var confs []LayerConfig
	if err := dec.Decode(&confs); err != nil {
		return err
	}
	src := m.src
	if src == nil {
		src = random.New(0)
	}
	fresh, err := Build(src, confs...)
	if err != nil {
		return err
	}
	for _, p := range fresh.params {
		var data []float32
		if err := dec.Decode(&data); err != nil {
			return errors.Wrapf(err, "decode %v", p)
		}
		if want := p.value.Shape().TotalSize(); len(data) != want {
			return shapeErr("decode "+p.Name, p.value.Shape(), []int{len(data)})
		}
		copy(matrix.F32s(p.value), data)
	}
	*m = *fresh
	return nil
}

// SetSource replaces the random source of the model and of every layer.
func (m *Model) SetSource(src *random.Source) {
	m.src = src.Split()
	for _, l := range m.Layers {
		l.SetSource(src.Split())
	}
}

// Save writes the model into filename.
func (m *Model) Save(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return errors.WithStack(err)
	}
	defer f.Close()

	enc := gob.NewEncoder(f)
	return enc.Encode(m)
}

// Load reads a model written by Save. Its layers sample from substreams of src.
func Load(filename string, src *random.Source) (*Model, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	m := &Model{src: src}
	dec := gob.NewDecoder(f)
	if err = dec.Decode(m); err != nil {
		return nil, errors.WithStack(err)
	}
	return m, nil
}
