// Package logger provides the leveled logging interface used by the analysis
// pipeline, so stages can log without depending on where the output goes.
package logger

// LogLevel is the severity attached to a log line
type LogLevel int

const (
	// LogDebug is per-iteration and per-file detail
	LogDebug LogLevel = iota

	// LogInfo is stage progress
	LogInfo

	// LogWarn is an advisory condition, such as GPA stopping at its iteration cap
	LogWarn

	// LogError is a failure (does not call os.Exit)
	LogError
)

var logLevelPrefix = map[LogLevel]string{
	LogDebug: "DEBUG",
	LogInfo:  "INFO",
	LogWarn:  "WARN",
	LogError: "ERROR",
}

// String returns the prefix printed for the level
func (l LogLevel) String() string {
	if p, ok := logLevelPrefix[l]; ok {
		return p
	}
	return "UNKNOWN"
}

// ILogger is the logging interface every pipeline stage receives
type ILogger interface {
	Printf(level LogLevel, format string, a ...interface{})
	Debugf(format string, a ...interface{})
	Infof(format string, a ...interface{})
	Warnf(format string, a ...interface{})
	Errorf(format string, a ...interface{})
}

// New returns a stdout logger that drops lines below minLevel
func New(minLevel LogLevel) *StdOutLogger {
	return &StdOutLogger{logLevel: minLevel}
}
