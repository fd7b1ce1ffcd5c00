package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"
)

// ============================================================================
// Central Daemon Loop
// ============================================================================
//
// Rules enforced here:
//   - The reducer performs no I/O and computes: next state + commands + broadcasts.
//   - The daemon loop is the only place that reads the source and drives the output.
//   - Output failures are turned into Events and fed back into the reducer.
//
// ============================================================================

// daemonDeps bundles the collaborators of runDaemon.
type daemonDeps struct {
	Source     Source
	Output     Output
	Broadcasts chan<- StateBroadcast // optional
	Logger     *slog.Logger
}

// runDaemon reads one sample per tick, reduces it together with control events, and
// executes the resulting commands.
//
// It returns nil when ctx is canceled, when events is closed, or when the source
// reports io.EOF.
func runDaemon(
	ctx context.Context,
	events <-chan Event,
	state *DaemonState,
	cfg ReducerConfig,
	tick time.Duration,
	deps daemonDeps,
) error {
	logger := deps.Logger
	if state == nil {
		return errors.New("daemon state is nil")
	}
	if deps.Source == nil {
		return errors.New("daemon source is nil")
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	var eventQueue []Event
	var cmdQueue []Command

	enqueueEvent := func(ev Event) {
		eventQueue = append(eventQueue, ev)
	}

	publish := func(bs []StateBroadcast) {
		if deps.Broadcasts == nil {
			return
		}
		for _, b := range bs {
			select {
			case deps.Broadcasts <- b:
			default:
				logger.Debug("broadcast queue full, dropping", "type", broadcastName(b))
			}
		}
	}

	// Reduce all queued events, enqueuing any resulting commands.
	flushEvents := func() {
		for len(eventQueue) > 0 {
			ev := eventQueue[0]
			eventQueue = eventQueue[1:]

			rr := Reduce(state, ev, cfg)
			if rr.State != nil {
				state = rr.State
			}
			cmdQueue = append(cmdQueue, rr.Commands...)
			publish(rr.Broadcasts)
		}
	}

	// Execute all queued commands, reducing their failure events promptly.
	flushCommands := func() {
		for len(cmdQueue) > 0 {
			cmd := cmdQueue[0]
			cmdQueue = cmdQueue[1:]

			runEffect(deps.Output, cmd, logger, enqueueEvent)
			flushEvents()
		}
	}

	readFailures := 0

	for {
		select {
		case <-ctx.Done():
			logger.Info("daemon stopping (context canceled)")
			return nil

		case ev, ok := <-events:
			if !ok {
				logger.Info("daemon stopping (events channel closed)")
				return nil
			}
			if _, isReq := ev.(RequestStateSnapshot); isReq {
				enqueueEvent(ev)
			} else {
				enqueueEvent(TimedEvent{Event: ev, At: time.Now()})
			}
			flushEvents()
			flushCommands()

		case now := <-ticker.C:
			smp, err := deps.Source.Read()
			if err != nil {
				if errors.Is(err, io.EOF) {
					logger.Info("daemon stopping (source exhausted)", "ticks", state.Snapshot().Ticks)
					return nil
				}
				readFailures++
				// Log the first failure of a streak, then every 100th.
				if readFailures == 1 || readFailures%100 == 0 {
					logger.Warn("source read failed", "error", err, "consecutive", readFailures)
				}
				enqueueEvent(SampleFailed{Err: err, At: now})
			} else {
				if readFailures > 0 {
					logger.Info("source recovered", "failed_reads", readFailures)
					readFailures = 0
				}
				enqueueEvent(Tick{Now: now, Sample: smp})
			}
			flushEvents()
			flushCommands()
		}
	}
}

func broadcastName(b StateBroadcast) string {
	if ev, ok := convertBroadcast(b); ok {
		return ev.Type
	}
	return "unknown"
}
