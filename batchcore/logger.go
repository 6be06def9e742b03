package batchcore

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Logger is the leveled, structured sink the engine writes its own
// progress messages to (spec: "the logging facility is an external
// collaborator"). *charmlog.Logger satisfies this interface directly —
// no adapter is needed, matching the teacher's own call sites such as
// log.Info("created alias", "alias", aName, "target", target).
type Logger interface {
	Debug(msg any, keyvals ...any)
	Info(msg any, keyvals ...any)
	Warn(msg any, keyvals ...any)
	Error(msg any, keyvals ...any)
}

// DefaultLogger returns a charmbracelet/log logger writing to stderr,
// the same default destination as the teacher's internal/logging.New.
func DefaultLogger() Logger {
	return charmlog.New(os.Stderr)
}
