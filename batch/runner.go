// Package batch runs independent propagations in parallel.
package batch

import (
	"context"
	"runtime"
	"time"

	"github.com/ChristopherRabotin/orbprop"
	"github.com/go-kit/log"
	"golang.org/x/sync/errgroup"
)

// Builder returns a new propagator for one initial state. Every call must
// return an independent propagator; *orbprop.Scenario.Build satisfies it.
type Builder func(initial orbprop.State, opts ...orbprop.Option) (*orbprop.Propagator, error)

// Sink receives each finished run. It is called concurrently.
type Sink func(ctx context.Context, idx int, res *orbprop.Result, err error) error

// Outcome is the result of one run. Errors of a run are local to it.
type Outcome struct {
	Index  int
	Result *orbprop.Result
	Err    error
}

// Runner propagates a batch of initial states with a bounded number of workers.
type Runner struct {
	Build   Builder
	Target  func(initial orbprop.State) orbprop.Epoch
	Workers int
	Logger  log.Logger
	Sink    Sink
}

// Run propagates every initial state. Cancelling ctx stops dispatching new runs;
// runs already started complete. The returned error is the context or sink
// error, never a propagation failure, which is reported in its Outcome.
func (r *Runner) Run(ctx context.Context, initials []orbprop.State) ([]Outcome, error) {
	workers := r.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	logger := r.Logger
	if logger == nil {
		logger = log.NewNopLogger()
	}
	outcomes := make([]Outcome, len(initials))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, s := range initials {
		if gctx.Err() != nil {
			break
		}
		i, s := i, s
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := r.runOne(log.With(logger, "run", i), s)
			outcomes[i] = Outcome{Index: i, Result: res, Err: err}
			if r.Sink != nil && res != nil {
				return r.Sink(gctx, i, res, err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	return outcomes, err
}

func (r *Runner) runOne(logger log.Logger, s orbprop.State) (*orbprop.Result, error) {
	runsInFlight.Inc()
	defer runsInFlight.Dec()
	start := time.Now()
	p, err := r.Build(s, orbprop.WithLogger(logger))
	if err != nil {
		runsTotal.WithLabelValues("config").Inc()
		logger.Log("level", "critical", "subsys", "batch", "err", err)
		return nil, err
	}
	res, err := p.Propagate(r.Target(s))
	runDurationSeconds.Observe(time.Since(start).Seconds())
	if res != nil {
		runsTotal.WithLabelValues(res.Status.String()).Inc()
		stepsTotal.WithLabelValues("accepted").Add(float64(res.Stats.Accepted))
		stepsTotal.WithLabelValues("rejected").Add(float64(res.Stats.Rejected))
		for _, e := range res.Events {
			eventsTotal.WithLabelValues(e.Action.String()).Inc()
		}
	}
	return res, err
}

// Summary counts outcomes by status.
func Summary(outcomes []Outcome) map[string]int {
	out := make(map[string]int)
	for _, o := range outcomes {
		switch {
		case o.Result != nil:
			out[o.Result.Status.String()]++
		case o.Err != nil:
			out["config"]++
		default:
			out["skipped"]++
		}
	}
	return out
}
