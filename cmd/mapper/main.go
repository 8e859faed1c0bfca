// Command mapper computes per-condition response maps from a widefield
// recording, its stimulus trigger trace and condition labels, then writes a
// snapshot, an overlay figure and run metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"widefield-mapper/internal/config"
	"widefield-mapper/internal/metrics"
	"widefield-mapper/internal/pipeline"
	"widefield-mapper/internal/render"
	"widefield-mapper/internal/response"
	"widefield-mapper/internal/snapshot"
	"widefield-mapper/internal/stage"
	"widefield-mapper/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	configPath := flag.String("config", config.DefaultFile, "Path to the run configuration")
	out := flag.String("out", "median_zscore.fits", "Snapshot file to write (empty to skip)")
	overlay := flag.String("render", "", "Overlay PNG to write (empty to skip)")
	metricsPath := flag.String("metrics", "", "Prometheus textfile to write (empty to skip)")
	manifestPath := flag.String("manifest", "", "Run manifest to write (default: snapshot path with .json)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("mapper", version.String())
		return
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: failed to load .env: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Config: %v", err)
	}
	if cfg, err = cfg.ApplyEnv(os.LookupEnv); err != nil {
		log.Fatalf("Config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	start := time.Now()
	in, err := pipeline.LoadInputs(cfg)
	m.ObserveStage(stage.Load, time.Since(start))
	if err != nil {
		log.Fatalf("Load: %v", err)
	}

	res, err := pipeline.Run(ctx, cfg, in, m)
	if err != nil {
		log.Fatalf("Run failed: %v", err)
	}

	if *out != "" {
		start = time.Now()
		err := snapshot.Save(*out, res.Maps, snapshot.Meta{
			RunID:    res.RunID,
			Window:   response.Window{Start: cfg.ResponseStart, Stop: cfg.ResponseStop},
			Baseline: cfg.BaselineFrames,
		})
		m.ObserveStage(stage.Snapshot, time.Since(start))
		if err != nil {
			log.Fatalf("Snapshot: %v", err)
		}
	}

	if *overlay != "" {
		start = time.Now()
		err := render.WriteOverlay(*overlay, res.Maps, cfg.BackgroundPath(), cfg.DownsampleFactor, cfg.ZscoreThreshold)
		m.ObserveStage(stage.Render, time.Since(start))
		if err != nil {
			log.Fatalf("Render: %v", err)
		}
	}

	if *metricsPath != "" {
		if err := m.WriteTextfile(*metricsPath); err != nil {
			log.Fatalf("Metrics: %v", err)
		}
	}

	manifest := *manifestPath
	if manifest == "" && *out != "" {
		manifest = strings.TrimSuffix(*out, ".fits") + ".json"
	}
	if manifest != "" {
		mf := snapshot.NewManifest(res.RunID, version.String(), cfg, res.Maps)
		mf.Trials = res.Trials
		mf.Degenerate = res.Degenerate
		mf.SetOutputs(manifest, *out, *overlay, *metricsPath)
		if err := snapshot.WriteManifest(manifest, mf); err != nil {
			log.Fatalf("Manifest: %v", err)
		}
		// effective config after env overrides, reusable with -config
		if err := cfg.Save(strings.TrimSuffix(manifest, ".json") + "_config.json"); err != nil {
			log.Fatalf("Config: %v", err)
		}
	}

	fmt.Printf("Run %s: %d conditions, %d trials\n", res.RunID, len(res.Maps), res.Trials)
}
