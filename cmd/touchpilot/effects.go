package main

import (
	"log/slog"
	"time"
)

// runEffect executes a single reducer-emitted Command and reports failures via onEvent.
//
// It may perform I/O but never calls Reduce; the daemon loop feeds emitted events back.
func runEffect(
	out Output,
	cmd Command,
	logger *slog.Logger,
	onEvent func(Event),
) {
	now := time.Now()

	fail := func(err error) {
		if onEvent != nil {
			onEvent(OutputCommandFailed{Command: cmd, Err: err, At: now})
		}
	}

	switch c := cmd.(type) {
	case CmdPublishStateSnapshot:
		if c.Reply == nil {
			logger.Warn("state snapshot requested with nil reply channel")
			return
		}

		// Never block the daemon loop on a requester.
		select {
		case c.Reply <- c.Snapshot:
		default:
			logger.Warn("state snapshot reply channel not ready; dropping snapshot")
		}

	case CmdSetButton:
		if out == nil {
			fail(errNoOutput{})
			return
		}
		if err := out.SetButton(c.Button, c.Pressed); err != nil {
			logger.Error("output SetButton failed", "error", err, "button", c.Button.String(), "pressed", c.Pressed)
			fail(err)
		}

	case CmdSetStick:
		if out == nil {
			fail(errNoOutput{})
			return
		}
		if err := out.SetStick(c.X, c.Y); err != nil {
			logger.Error("output SetStick failed", "error", err, "x", c.X, "y", c.Y)
			fail(err)
		}

	default:
		logger.Warn("unknown command type", "command", cmd.String())
		fail(errUnknownCommand{cmd: cmd})
	}
}

// errNoOutput indicates a command reached the effects stage without an Output.
type errNoOutput struct{}

func (errNoOutput) Error() string { return "no output configured" }

type errUnknownCommand struct {
	cmd Command
}

func (e errUnknownCommand) Error() string { return "unknown command: " + e.cmd.String() }
