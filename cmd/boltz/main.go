// Command boltz imports datasets into SQLite and trains Boltzmann machines on them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"

	"github.com/gorgonia/boltzmann/models"
	"github.com/gorgonia/boltzmann/random"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}
	switch args[0] {
	case "import":
		return runImport(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "dot":
		return runDot(args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runDot(args []string) error {
	if len(args) != 1 {
		return usageError("dot takes the path of a saved model")
	}
	m, err := models.Load(args[0], random.New(0))
	if err != nil {
		return errors.WithMessage(err, "load model")
	}
	fmt.Fprint(stdout, m.ToDot())
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: boltz <import|train|dot> [flags]", msg)
}
