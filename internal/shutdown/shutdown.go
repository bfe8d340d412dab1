// Package shutdown reacts to a termination signal by closing the store and
// exiting the process. In-flight connections are not drained: they die with
// the process.
package shutdown

import (
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Controller owns the last steps of the process.
type Controller struct {
	store io.Closer
	log   *slog.Logger
	exit  func(code int)
}

// Option is a functional controller option.
type Option func(*Controller)

// WithExit replaces os.Exit, mainly for tests.
func WithExit(exit func(code int)) Option {
	return func(c *Controller) {
		c.exit = exit
	}
}

// New returns a controller that closes store on shutdown.
func New(store io.Closer, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		store: store,
		log:   log,
		exit:  os.Exit,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Notify returns a channel that receives SIGINT (Ctrl+C) and SIGTERM.
// Buffered so a signal is not lost while main is busy.
func Notify() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// Wait blocks until a signal arrives on signals, closes the store and
// exits with status 0. A store close error is logged, not fatal.
func (c *Controller) Wait(signals <-chan os.Signal) {
	sig := <-signals

	c.log.Info("shutting down server", slog.String("signal", sig.String()))

	if err := c.store.Close(); err != nil {
		c.log.Error("failed to close storage", slog.Any("error", err))
	}

	c.exit(0)
}
