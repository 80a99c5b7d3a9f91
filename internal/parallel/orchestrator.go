// Package parallel runs power collection against many controllers at once.
//
// Each target is one task: resolve its tunnel settings, open the tunnel if
// one is needed, connect, take a single reading or run a monitoring loop,
// and release everything on the way out. Tasks share nothing but the
// context, so one target's failure never touches another's.
package parallel

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rileyhilliard/idrac-power/internal/errors"
	"github.com/rileyhilliard/idrac-power/internal/logger"
	"github.com/rileyhilliard/idrac-power/internal/target"
)

// Orchestrator coordinates per-target tasks across a bounded worker pool.
type Orchestrator struct {
	config    Config
	connector Connector
	tunnels   TunnelOpener
	log       logger.Logger

	newRunID func() string
}

// NewOrchestrator creates an orchestrator. tunnels may be nil when no target
// needs a jumphost; a target that does then fails with ErrTunnel.
func NewOrchestrator(cfg Config, connector Connector, tunnels TunnelOpener) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = logger.Noop()
	}
	return &Orchestrator{
		config:    cfg,
		connector: connector,
		tunnels:   tunnels,
		log:       log,
		newRunID:  uuid.NewString,
	}
}

// Run executes one task per target and returns once every task has
// finished. Outcomes are in completion order and there is exactly one per
// target. Targets still queued when ctx is cancelled get a failed outcome
// without being contacted.
func (o *Orchestrator) Run(ctx context.Context, targets []target.Target) *Result {
	runID := o.newRunID()
	if len(targets) == 0 {
		return &Result{RunID: runID, Outcomes: []Outcome{}}
	}

	startTime := time.Now()

	// Create task queue (channel-based work stealing)
	taskQueue := make(chan target.Target, len(targets))
	for _, t := range targets {
		taskQueue <- t
	}
	close(taskQueue)

	numWorkers := o.config.workers(len(targets))
	o.log.Debug("run %s: %d target(s), %d worker(s)", runID, len(targets), numWorkers)

	resultChan := make(chan Outcome, len(targets))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.worker(ctx, taskQueue, resultChan)
		}()
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	outcomes := make([]Outcome, 0, len(targets))
	for outcome := range resultChan {
		outcomes = append(outcomes, outcome)
	}

	return buildResult(runID, outcomes, time.Since(startTime))
}

// worker drains the queue until it is empty.
func (o *Orchestrator) worker(ctx context.Context, taskQueue <-chan target.Target, resultChan chan<- Outcome) {
	for t := range taskQueue {
		var outcome Outcome
		select {
		case <-ctx.Done():
			outcome = o.skipped(ctx, t)
		default:
			o.started(t)
			outcome = o.RunTarget(ctx, t)
		}
		o.completed(outcome)
		resultChan <- outcome
	}
}

func (o *Orchestrator) skipped(ctx context.Context, t target.Target) Outcome {
	out := Outcome{Name: t.Name, Address: t.Address}
	return o.fail(out, errors.WrapWithCode(ctx.Err(), errors.ErrInterrupted,
		"Interrupted before this server was contacted", ""))
}

func (o *Orchestrator) started(t target.Target) {
	if o.config.Events != nil {
		o.config.Events.TargetStarted(t)
	}
}

func (o *Orchestrator) completed(out Outcome) {
	if out.Success {
		o.log.Debug("[%s] complete in %s", out.Name, out.Duration.Round(time.Millisecond))
	} else {
		o.log.Debug("[%s] failed: %s", out.Name, out.Error)
	}
	if o.config.Events != nil {
		o.config.Events.TargetCompleted(out)
	}
}

// buildResult counts passed and failed outcomes.
func buildResult(runID string, outcomes []Outcome, duration time.Duration) *Result {
	result := &Result{
		RunID:    runID,
		Total:    len(outcomes),
		Outcomes: outcomes,
		Duration: duration,
	}
	for i := range outcomes {
		if outcomes[i].Success {
			result.Passed++
		} else {
			result.Failed++
		}
	}
	return result
}
