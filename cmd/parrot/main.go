package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/parrot/internal/bench"
	"github.com/Brownie44l1/parrot/internal/config"
	"github.com/Brownie44l1/parrot/internal/engine/native"
	"github.com/Brownie44l1/parrot/internal/env"
	"github.com/Brownie44l1/parrot/internal/images"
	"github.com/Brownie44l1/parrot/internal/labels"
	"github.com/Brownie44l1/parrot/internal/logger"
	"github.com/Brownie44l1/parrot/internal/model"
	"github.com/Brownie44l1/parrot/internal/modelspec"
	"github.com/Brownie44l1/parrot/internal/sysinfo"
	"github.com/google/uuid"
)

func main() {
	var (
		flagConfig     = flag.String("config", "", "Path to a YAML config file (defaults to the built-in bird demo)")
		flagLabels     = flag.String("labels", "", "Label file, overrides the config")
		flagImage      = flag.String("image", "", "Image file, overrides the config")
		flagIterations = flag.Int("iterations", 0, "Invocations per model, overrides the config")
		flagTopK       = flag.Int("top-k", 0, "Number of classes to print, overrides the config")
		flagLogLevel   = flag.String("log-level", "", "debug, info, warn or error")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] [model[@device] ...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			fatal("Failed to load config", err)
		}
		cfg = loaded
	}
	applyFlags(cfg, *flagLabels, *flagImage, *flagIterations, *flagTopK, *flagLogLevel, flag.Args())

	slog.SetDefault(
		logger.New(env.FromEnv(),
			logger.WithLevel(logger.ParseLevel(cfg.Log.Level)),
			logger.WithLogToFile(cfg.Log.File != ""),
			logger.WithLogFile(cfg.Log.File),
		).With("run_id", uuid.NewString()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		stop()
		fatal("Benchmark failed", err)
	}
}

func applyFlags(cfg *config.Config, labelsPath, imagePath string, iterations, topK int, level string, models []string) {
	if labelsPath != "" {
		cfg.Labels = labelsPath
	}
	if imagePath != "" {
		cfg.Image = imagePath
	}
	if iterations > 0 {
		cfg.Iterations = iterations
	}
	if topK > 0 {
		cfg.TopK = topK
	}
	if level != "" {
		cfg.Log.Level = level
	}
	if len(models) > 0 {
		cfg.Models = models
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	if h, err := sysinfo.HostInfo(ctx); err == nil {
		slog.Info("Starting benchmark", "host", h, "models", len(cfg.Models))
	} else {
		slog.Warn("Host info unavailable", "error", err)
	}

	table, err := labels.Parse(cfg.Labels, cfg.LabelsEncoding)
	if err != nil {
		return err
	}
	slog.Info("Labels loaded", "path", cfg.Labels, "count", len(table))

	img, err := images.Load(cfg.Image)
	if err != nil {
		return err
	}
	slog.Info("Image loaded", "path", cfg.Image,
		"width", img.Bounds().Dx(), "height", img.Bounds().Dy())

	params := bench.Params{
		Iterations: cfg.Iterations,
		TopK:       cfg.TopK,
		Threshold:  cfg.Threshold,
	}
	opts := model.Options{
		Threads:            cfg.Threads,
		ONNXRuntimeLibrary: cfg.ONNXRuntimeLibrary,
	}

	for _, ref := range cfg.Models {
		if err := benchmark(ctx, modelspec.Resolve(ref), opts, img, table, params); err != nil {
			return fmt.Errorf("%s: %w", ref, err)
		}
	}
	return nil
}

func benchmark(ctx context.Context, spec modelspec.Spec, opts model.Options, img image.Image, table labels.Table, params bench.Params) error {
	interp, err := native.Loader().Open(spec, opts)
	if err != nil {
		return err
	}
	defer interp.Close()

	if rss, err := sysinfo.RSS(ctx); err == nil {
		slog.Debug("Model loaded", "model", spec.String(), "rss_bytes", rss)
	}

	res, err := bench.Run(ctx, spec.String(), interp, img, params)
	if err != nil {
		return err
	}

	slog.Info("Benchmark finished",
		"model", spec.String(),
		"accelerated", modelspec.RequiresAccelerator(spec),
		"mean", res.Mean())

	return res.Print(os.Stdout, table)
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
