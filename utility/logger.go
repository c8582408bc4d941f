package utility

import (
	"log"
	"os"
)

// Logger is the capability each visualization component receives instead of
// writing to a process-wide log. *log.Logger satisfies it.
type Logger interface {
	Printf(format string, args ...any)
}

// DefaultLogger returns the logger components fall back to when none is
// injected.
func DefaultLogger() Logger {
	return log.New(os.Stderr, "whytebox ", log.LstdFlags)
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...any) {}

// NopLogger discards everything; handy in tests.
func NopLogger() Logger { return nopLogger{} }
