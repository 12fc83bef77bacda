package core

// Logger is any leveled logger the services can write through.
// Implementations may inspect args for well-known types (e.g. a principal)
// to enrich the entry.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}
