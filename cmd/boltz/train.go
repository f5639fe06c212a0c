package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"github.com/gorgonia/boltzmann"
	"github.com/gorgonia/boltzmann/batch"
	"github.com/gorgonia/boltzmann/encoding/gif"
	"github.com/gorgonia/boltzmann/fit"
	"github.com/gorgonia/boltzmann/layers"
	"github.com/gorgonia/boltzmann/random"
	"github.com/gorgonia/boltzmann/samplers"
)

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional JSON config; flags that are set override it")
	dbPath := fs.String("db", "", "sqlite database holding the data")
	table := fs.String("table", "data", "table of the data")
	noiseRows := fs.Int("noise-rows", 1000, "rows of Bernoulli noise used when no -db is given")
	noiseCols := fs.Int("noise-cols", 100, "columns of Bernoulli noise used when no -db is given")
	noiseP := fs.Float64("noise-p", 0.5, "probability of a one in the noise")
	hidden := fs.Int("hidden", 64, "hidden units of an RBM")
	visFamily := fs.String("visible", "bernoulli", "visible family: bernoulli|gaussian|exponential|ising")
	hidFamily := fs.String("hidden-family", "bernoulli", "hidden family: bernoulli|gaussian|exponential|ising")
	dropout := fs.Float64("dropout", 0, "probability of dropping a hidden unit during training")
	epochs := fs.Int("epochs", 10, "epochs in all, including those of a resumed snapshot")
	batchSize := fs.Int("batch", 100, "minibatch size")
	transform := fs.String("transform", "", "transform applied to every batch: binarize_color|binary_to_ising|color_to_ising|scale/N")
	mcsteps := fs.Int("mcsteps", 1, "Gibbs sweeps of the negative phase")
	method := fs.String("method", "pcd", "training method: cd|pcd")
	sampler := fs.String("sampler", "stochastic", "sampler: stochastic|mean_field|deterministic")
	driven := fs.Bool("driven", false, "drive the chains with fluctuating temperatures")
	optimizer := fs.String("optimizer", "adam", "optimizer: sgd|momentum|rmsprop|adam|vanilla")
	lr := fs.Float64("lr", 0.001, "initial learning rate")
	decay := fs.String("decay", "power_law", "learning rate decay: constant|power_law|exponential")
	skip := fs.Int("skip", 200, "minibatches between monitor checks, 0 disables")
	seed := fs.Int64("seed", 137, "rng seed")
	out := fs.String("out", "", "write the trained model here")
	gifPath := fs.String("gif", "", "write fantasy particles of every epoch into this GIF")
	tile := fs.String("tile", "10x10", "shape of a visible vector in the GIF, HxW")
	statsPath := fs.String("stats", "", "write the monitor history here as CSV")
	snapshots := fs.String("snapshots", "", "sqlite database for per epoch snapshots")
	resume := fs.Int("resume", -1, "resume from the snapshot of this epoch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	conf, err := loadConfig(*configPath, *hidden)
	if err != nil {
		return err
	}
	if *configPath == "" || set["hidden"] {
		conf.Layers[len(conf.Layers)-1].Size = *hidden
	}
	if *configPath == "" || set["visible"] {
		if conf.Layers[0].Family, err = layers.ParseFamily(*visFamily); err != nil {
			return err
		}
	}
	if *configPath == "" || set["hidden-family"] {
		if conf.Layers[len(conf.Layers)-1].Family, err = layers.ParseFamily(*hidFamily); err != nil {
			return err
		}
	}
	if *configPath == "" || set["dropout"] {
		conf.Layers[len(conf.Layers)-1].Dropout = float32(*dropout)
	}
	if *configPath == "" || set["epochs"] {
		conf.Fit.Epochs = *epochs
	}
	if *configPath == "" || set["batch"] {
		conf.Batch.BatchSize = *batchSize
	}
	if *configPath == "" || set["transform"] {
		conf.Batch.Transform = *transform
	}
	if *configPath == "" || set["mcsteps"] {
		conf.Fit.MCSteps = *mcsteps
	}
	if *configPath == "" || set["method"] {
		if conf.Fit.Method, err = fit.ParseMethod(*method); err != nil {
			return err
		}
	}
	if *configPath == "" || set["sampler"] {
		if conf.Sampler, err = samplers.ParseMethod(*sampler); err != nil {
			return err
		}
	}
	if set["driven"] {
		conf.Drive = nil
		if *driven {
			d := samplers.DefaultDriveConfig()
			conf.Drive = &d
		}
	}
	if *configPath == "" || set["optimizer"] {
		conf.Optimizer.Name = *optimizer
	}
	if *configPath == "" || set["lr"] {
		conf.Optimizer.LearnRate = float32(*lr)
	}
	if *configPath == "" || set["decay"] {
		conf.Optimizer.Decay = *decay
	}
	if *configPath == "" || set["skip"] {
		conf.Fit.Skip = *skip
	}
	if *configPath == "" || set["seed"] {
		conf.Seed = *seed
	}

	var data batch.Batch
	if *dbPath != "" {
		if data, err = batch.OpenSQLite(ctx, *dbPath, *table, conf.Batch); err != nil {
			return errors.WithMessage(err, "open data")
		}
	} else {
		src := random.New(conf.Seed).Split()
		if data, err = batch.NewTable(batch.Noise(*noiseRows, *noiseCols, float32(*noiseP), src), conf.Batch, src.Split()); err != nil {
			return err
		}
	}
	if conf.Layers[0].Size == 0 {
		conf.Layers[0].Size = data.Cols()
	}

	e, err := boltzmann.New(data, conf)
	if err != nil {
		data.Close()
		return err
	}
	if *snapshots != "" {
		if e.Snapshots, err = batch.OpenSnapshots(ctx, *snapshots); err != nil {
			e.Close()
			return err
		}
	}
	var gifFile *os.File
	if *gifPath != "" {
		h, w, err := parseTile(*tile)
		if err != nil {
			e.Close()
			return err
		}
		if gifFile, err = os.Create(*gifPath); err != nil {
			e.Close()
			return errors.WithStack(err)
		}
		defer gifFile.Close()
		e.OutputEncoder = gif.NewEncoder(gifFile, h, w)
	}

	if *resume >= 0 {
		ok, err := e.Resume(ctx, *resume)
		if err != nil {
			e.Close()
			return err
		}
		if !ok {
			e.Close()
			return errors.Errorf("no snapshot of epoch %d", *resume)
		}
		remaining := conf.Fit.Epochs - e.Epochs()
		if remaining < 1 {
			fmt.Fprintf(stdout, "the snapshot of epoch %d already covers %d epochs\n", *resume, e.Epochs())
			return e.Close()
		}
		if err = e.SetEpochs(remaining); err != nil {
			e.Close()
			return err
		}
	}

	learnErr := e.Learn(ctx)
	if learnErr == nil {
		if recon, err := e.Reconstruction(); err == nil {
			fmt.Fprintf(stdout, "trained %d epochs, validation reconstruction error %v\n", e.Epochs(), recon)
		}
		if *out != "" {
			learnErr = e.Save(*out)
		}
	}
	if learnErr == nil && *statsPath != "" {
		learnErr = e.Dump(*statsPath)
	}
	if err = e.Close(); learnErr == nil {
		learnErr = err
	}
	return learnErr
}
