package batch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/san-kum/dsmcsim/internal/dynamo"
	"gonum.org/v1/gonum/stat"
)

// Trial runs trajectory number index with its own random stream.
type Trial func(ctx context.Context, rng *rand.Rand, index int) (*dynamo.Result, error)

type Outcome struct {
	Index  int
	Result *dynamo.Result
	Err    error
}

// Exited reports a trial that left its region without error.
func (o Outcome) Exited() bool {
	return o.Err == nil && o.Result != nil && o.Result.Reason == dynamo.PhaseExited
}

type Ensemble struct {
	Trials   int
	Workers  int
	Seed     uint64
	Progress func(done, total int)
}

func NewEnsemble(trials, workers int, seed uint64) *Ensemble {
	return &Ensemble{Trials: trials, Workers: workers, Seed: seed}
}

// Stream returns the random stream of trial index.
func (e *Ensemble) Stream(index int) *rand.Rand {
	return rand.New(rand.NewPCG(e.Seed, uint64(index)))
}

// Run executes all trials. A failing trial is recorded in its Outcome and
// does not stop the others; only cancellation of ctx aborts the batch.
func (e *Ensemble) Run(ctx context.Context, trial Trial) ([]Outcome, error) {
	if e.Trials <= 0 {
		return nil, fmt.Errorf("%w: trials must be positive, got %d", dynamo.ErrInvalidConfig, e.Trials)
	}
	workers := e.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = min(workers, e.Trials)

	outcomes := make([]Outcome, e.Trials)
	started := make([]bool, e.Trials)
	jobs := make(chan int)
	var done atomic.Int64
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res, err := trial(ctx, e.Stream(i), i)
				outcomes[i] = Outcome{Index: i, Result: res, Err: err}
				n := done.Add(1)
				if e.Progress != nil {
					e.Progress(int(n), e.Trials)
				}
			}
		}()
	}

feed:
	for i := 0; i < e.Trials; i++ {
		select {
		case jobs <- i:
			started[i] = true
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		canceled := fmt.Errorf("%w: %v", dynamo.ErrContextCanceled, err)
		for i := range outcomes {
			if !started[i] {
				outcomes[i] = Outcome{Index: i, Err: canceled}
			}
		}
		return outcomes, canceled
	}
	return outcomes, nil
}

// Summary reduces an ensemble. Means and standard errors are over the
// trials that finished without error; the standard error uses the
// population deviation.
type Summary struct {
	Trials         int
	Exited         int
	TimedOut       int
	Failed         int
	Failures       map[string]int
	MeanTime       float64
	StdErrTime     float64
	MeanSteps      float64
	StdErrSteps    float64
	MeanCollisions float64
}

func meanStdErr(x []float64) (float64, float64) {
	if len(x) == 0 {
		return math.NaN(), math.NaN()
	}
	mean, variance := stat.PopMeanVariance(x, nil)
	return mean, stat.StdErr(math.Sqrt(variance), float64(len(x)))
}

func Summarize(outcomes []Outcome) Summary {
	s := Summary{Trials: len(outcomes), Failures: make(map[string]int)}
	var times, steps, collisions []float64
	for _, o := range outcomes {
		if o.Err != nil {
			s.Failed++
			s.Failures[dynamo.Kind(o.Err)]++
			continue
		}
		if o.Result == nil {
			continue
		}
		switch o.Result.Reason {
		case dynamo.PhaseExited:
			s.Exited++
		case dynamo.PhaseTimedOut:
			s.TimedOut++
		}
		times = append(times, o.Result.Final.Time)
		steps = append(steps, float64(o.Result.Steps))
		collisions = append(collisions, float64(o.Result.Collisions))
	}
	s.MeanTime, s.StdErrTime = meanStdErr(times)
	s.MeanSteps, s.StdErrSteps = meanStdErr(steps)
	if len(collisions) > 0 {
		s.MeanCollisions = stat.Mean(collisions, nil)
	}
	return s
}

// ExitFraction is Exited/Trials.
func (s Summary) ExitFraction() float64 {
	if s.Trials == 0 {
		return 0
	}
	return float64(s.Exited) / float64(s.Trials)
}

func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("trials", s.Trials),
		slog.Int("exited", s.Exited),
		slog.Int("timed_out", s.TimedOut),
		slog.Int("failed", s.Failed),
		slog.Float64("mean_time", s.MeanTime),
		slog.Float64("sem_time", s.StdErrTime),
		slog.Float64("mean_steps", s.MeanSteps),
	)
}
