package main

import (
	"errors"
	"fmt"
	"log/slog"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// gpioOutput drives one GPIO line per button, e.g. wired across the contacts of a
// controller's A and B buttons through an optocoupler. There is no analog stick
// output; stick positions are only logged.
type gpioOutput struct {
	pins      map[Button]gpio.PinIO
	activeLow bool
	logger    *slog.Logger
}

func openGPIOOutput(cfg GPIOConfig, logger *slog.Logger) (*gpioOutput, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("init periph host: %w", err)
	}

	o := &gpioOutput{
		pins:      make(map[Button]gpio.PinIO),
		activeLow: cfg.ActiveLow,
		logger:    logger,
	}

	names := map[Button]string{ButtonA: cfg.ButtonA, ButtonB: cfg.ButtonB}
	for b, name := range names {
		if name == "" {
			continue
		}
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, fmt.Errorf("gpio pin %q for button %s not found", name, b)
		}
		if err := pin.Out(o.level(false)); err != nil {
			return nil, fmt.Errorf("gpio pin %q: %w", name, err)
		}
		o.pins[b] = pin
		logger.Info("gpio button configured", "button", b.String(), "pin", name, "active_low", cfg.ActiveLow)
	}
	return o, nil
}

func (o *gpioOutput) level(pressed bool) gpio.Level {
	if o.activeLow {
		return gpio.Level(!pressed)
	}
	return gpio.Level(pressed)
}

func (o *gpioOutput) SetButton(b Button, pressed bool) error {
	pin, ok := o.pins[b]
	if !ok {
		// Unwired button; nothing to drive.
		return nil
	}
	if err := pin.Out(o.level(pressed)); err != nil {
		return fmt.Errorf("gpio button %s: %w", b, err)
	}
	return nil
}

func (o *gpioOutput) SetStick(x, y uint8) error {
	o.logger.Debug("stick moved (gpio output has no stick)", "x", x, "y", y)
	return nil
}

// Close releases every button.
func (o *gpioOutput) Close() error {
	var errs []error
	for b, pin := range o.pins {
		if err := pin.Out(o.level(false)); err != nil {
			errs = append(errs, fmt.Errorf("gpio button %s: %w", b, err))
		}
	}
	return errors.Join(errs...)
}
