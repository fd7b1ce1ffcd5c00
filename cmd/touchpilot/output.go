package main

import (
	"fmt"
	"log/slog"
)

// Output receives button and stick state. It is driven only by the effects stage.
type Output interface {
	SetButton(b Button, pressed bool) error
	SetStick(x, y uint8) error
	Close() error
}

func openOutput(cfg OutputConfig, logger *slog.Logger) (Output, error) {
	switch cfg.Kind {
	case OutputLog:
		return &logOutput{logger: logger}, nil
	case OutputGPIO:
		out, err := openGPIOOutput(cfg.GPIO, logger)
		if err != nil {
			return nil, err
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown output kind %q", cfg.Kind)
	}
}

// logOutput writes button and stick changes to the log. Useful for tuning a pad
// without hardware attached.
type logOutput struct {
	logger *slog.Logger
}

func (o *logOutput) SetButton(b Button, pressed bool) error {
	if pressed {
		o.logger.Info("button pressed", "button", b.String())
	} else {
		o.logger.Info("button released", "button", b.String())
	}
	return nil
}

func (o *logOutput) SetStick(x, y uint8) error {
	o.logger.Debug("stick moved", "x", x, "y", y)
	return nil
}

func (o *logOutput) Close() error { return nil }
