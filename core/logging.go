package core

// Logger is any service that can log messages at several levels.
// Implementations may inspect args for an error or a logged in member
// to enrich the report.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
