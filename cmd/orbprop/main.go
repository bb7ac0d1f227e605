package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/ChristopherRabotin/orbprop"
	"github.com/ChristopherRabotin/orbprop/batch"
	"github.com/ChristopherRabotin/orbprop/sqlite"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// This reads a scenario and propagates it, optionally as a dispersed batch.

const defaultScenario = "~~unset~~"

var (
	scenario string
	cpus     int
	runs     int
	sigmaA   float64
	sigmaI   float64
	metrics  string
	xyzvStep float64
)

func init() {
	flag.StringVar(&scenario, "scenario", defaultScenario, "propagation scenario TOML file")
	flag.IntVar(&cpus, "cpus", -1, "number of CPUs to use (-1 for all)")
	flag.IntVar(&runs, "runs", 1, "number of dispersed runs (the first one is nominal)")
	flag.Float64Var(&sigmaA, "sigma-a", 0, "1σ injection error on the semi major axis (km)")
	flag.Float64Var(&sigmaI, "sigma-i", 0, "1σ injection error on the inclination (degrees)")
	flag.StringVar(&metrics, "metrics", "", "address serving Prometheus metrics during the batch, e.g. :9090")
	flag.Float64Var(&xyzvStep, "xyzv", 60, "interpolated state file step (s) when the ephemeris is enabled")
}

func main() {
	flag.Parse()
	if scenario == defaultScenario {
		log.Fatal("no scenario provided")
	}
	if cpus <= 0 {
		cpus = runtime.NumCPU()
	}
	runtime.GOMAXPROCS(cpus)

	sc, err := orbprop.LoadScenario(scenario)
	if err != nil {
		log.Fatalf("%s: %s", scenario, err)
	}
	logger := sc.Logger()
	logger.Log("level", "info", "subsys", "conf", "scenario", sc, "runs", runs, "cpus", cpus)

	initials, err := batch.Disperse(sc.Initial, batch.Sigmas{A: sigmaA, I: orbprop.Deg2rad(sigmaI)}, runs)
	if err != nil {
		log.Fatalf("dispersions: %s", err)
	}

	var store *sqlite.Store
	if sc.SQLite != "" {
		if store, err = sqlite.NewStore(sc.SQLite); err != nil {
			log.Fatalf("%s", err)
		}
		defer store.Close()
	}

	if metrics != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(metrics, mux); err != nil {
				logger.Log("level", "warning", "subsys", "metrics", "err", err)
			}
		}()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	runner := &batch.Runner{
		Build:   sc.Build,
		Target:  func(orbprop.State) orbprop.Epoch { return sc.Target() },
		Workers: cpus,
		Logger:  logger,
		Sink: func(ctx context.Context, idx int, res *orbprop.Result, runErr error) error {
			if store != nil {
				if _, err := store.SaveRun(ctx, sc.Name, idx, res, runErr); err != nil {
					return err
				}
			}
			return writeOutputs(sc, idx, res)
		},
	}
	outcomes, err := runner.Run(ctx, initials)
	if err != nil {
		log.Fatalf("batch: %s", err)
	}
	for _, o := range outcomes {
		if o.Err != nil {
			logger.Log("level", "critical", "subsys", "batch", "run", o.Index, "err", o.Err)
		} else if o.Result != nil {
			logger.Log("level", "info", "subsys", "batch", "run", o.Index, "status", o.Result.Status, "final", o.Result.Final.Elements(), "events", len(o.Result.Events))
		}
	}
	summary := batch.Summary(outcomes)
	logger.Log("level", "notice", "subsys", "batch", "summary", fmt.Sprint(summary))
	if summary["failed"]+summary["config"] > 0 {
		os.Exit(1)
	}
}

func outputPath(path string, idx int) string {
	if runs == 1 {
		return path
	}
	ext := filepath.Ext(path)
	return fmt.Sprintf("%s-%03d%s", strings.TrimSuffix(path, ext), idx, ext)
}

func writeOutputs(sc *orbprop.Scenario, idx int, res *orbprop.Result) error {
	if sc.CSVPath != "" && len(res.Samples) > 0 {
		f, err := os.Create(outputPath(sc.CSVPath, idx))
		if err != nil {
			return err
		}
		defer f.Close()
		if err := orbprop.WriteSamplesCSV(f, fmt.Sprintf("%s run %d (%s)", sc.Name, idx, res.Status), res.Samples); err != nil {
			return err
		}
	}
	if res.Ephemeris != nil && sc.CSVPath != "" {
		path := strings.TrimSuffix(outputPath(sc.CSVPath, idx), filepath.Ext(sc.CSVPath)) + ".xyzv"
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		defer f.Close()
		return orbprop.WriteXYZV(f, res.Ephemeris, xyzvStep)
	}
	return nil
}
