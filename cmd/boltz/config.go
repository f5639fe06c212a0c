package main

import (
	"bytes"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/gorgonia/boltzmann"
)

// loadConfig returns the default configuration overridden by the JSON file at path, if any.
// A visible layer of size 0 is sized from the data once it is opened.
func loadConfig(path string, hidden int) (boltzmann.Config, error) {
	conf := boltzmann.DefaultConfig(0, hidden)
	if path == "" {
		return conf, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return conf, errors.WithStack(err)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err = dec.Decode(&conf); err != nil {
		return conf, errors.Wrapf(err, "decode %s", path)
	}
	return conf, nil
}

// parseTile parses "HxW".
func parseTile(s string) (h, w int, err error) {
	parts := strings.Split(strings.ToLower(s), "x")
	if len(parts) != 2 {
		return 0, 0, errors.Errorf("tile %q is not of the form HxW", s)
	}
	if h, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, errors.Wrapf(err, "tile %q", s)
	}
	if w, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, errors.Wrapf(err, "tile %q", s)
	}
	if h < 1 || w < 1 {
		return 0, 0, errors.Errorf("tile %q must be positive", s)
	}
	return h, w, nil
}
