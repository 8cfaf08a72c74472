package logger

import (
	"fmt"
	"log"
)

// StdOutLogger writes through the standard library logger
type StdOutLogger struct {
	logLevel LogLevel
}

func (l *StdOutLogger) Printf(level LogLevel, format string, a ...interface{}) {
	if level < l.logLevel {
		return
	}
	log.Println(level.String() + ": " + fmt.Sprintf(format, a...))
}
func (l *StdOutLogger) Debugf(format string, a ...interface{}) {
	l.Printf(LogDebug, format, a...)
}
func (l *StdOutLogger) Infof(format string, a ...interface{}) {
	l.Printf(LogInfo, format, a...)
}
func (l *StdOutLogger) Warnf(format string, a ...interface{}) {
	l.Printf(LogWarn, format, a...)
}
func (l *StdOutLogger) Errorf(format string, a ...interface{}) {
	l.Printf(LogError, format, a...)
}

func (l *StdOutLogger) SetLogLevel(level LogLevel) {
	l.logLevel = level
}
func (l *StdOutLogger) GetLogLevel() LogLevel {
	return l.logLevel
}
