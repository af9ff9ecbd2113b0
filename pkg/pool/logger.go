package pool

import (
	"fmt"
	"log"
	"os"
)

// Logger is a minimal logging interface so the pool can report job failures
// without pulling a logging framework into the core package.
// Implementations must be safe for concurrent use.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// defaultLogger implements Logger using standard log
type defaultLogger struct {
	logger *log.Logger
}

func newDefaultLogger() Logger {
	return &defaultLogger{
		logger: log.New(os.Stderr, "[ERROR] ", log.LstdFlags|log.Lshortfile),
	}
}

func (l *defaultLogger) Errorf(format string, args ...interface{}) {
	l.logger.Output(3, fmt.Sprintf(format, args...))
}
