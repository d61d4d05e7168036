// Package logging provides the structured logging abstraction used across the
// application. Components receive a Logger through their constructors and never
// reach for a package-level logger.
package logging

// Logger defines structured logging with attached fields and error context.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)

	// WithError returns a logger that attaches err to every entry.
	WithError(err error) Logger

	// WithField returns a logger that attaches a single field to every entry.
	WithField(key string, value interface{}) Logger

	// WithFields returns a logger that attaches fields to every entry.
	WithFields(fields ...Field) Logger

	// Fatal logs and exits the program.
	Fatal(msg string, fields ...Field)

	// Fatalf logs a formatted message and exits the program.
	Fatalf(msg string, args ...interface{})
}

// Field is a key-value pair attached to a log entry.
type Field struct {
	Key   string
	Value interface{}
}

// F is shorthand for building a Field inline.
func F(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}
