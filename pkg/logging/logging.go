// Package logging configures the node's structured logger: one
// zerolog.Logger per subsystem, console-pretty on a terminal and plain
// JSON otherwise.
package logging

import (
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// Configure sets the global zerolog level and writer. Call once at
// startup before any component logger is derived.
func Configure(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
	if term.IsTerminal(int(os.Stdout.Fd())) {
		log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
		zerolog.DefaultContextLogger = &log
		base = log
		return
	}
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

var base = zerolog.New(os.Stdout).With().Timestamp().Logger()

// For returns a logger scoped to one named component, e.g. "chain",
// "pool", "miner", "p2p".
func For(component string) zerolog.Logger {
	return base.With().Str("component", component).Logger()
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
