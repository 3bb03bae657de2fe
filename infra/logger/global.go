package logger

import (
	"sync"
)

var (
	globalLogger *SystemLogger
	mu           sync.RWMutex
)

// InitGlobalLogger installs the process wide logger
func InitGlobalLogger(sink EventSink, config SystemLoggerConfig) {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = NewSystemLogger(sink, config)
}

// GetGlobalLogger returns the global logger instance
func GetGlobalLogger() *SystemLogger {
	mu.RLock()
	l := globalLogger
	mu.RUnlock()
	if l != nil {
		return l
	}

	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		// console only until InitGlobalLogger runs
		globalLogger = NewSystemLogger(nil, SystemLoggerConfig{
			EnableConsole: true,
			MinLevel:      LevelInfo,
			Format:        "console",
			Service:       "hummpay",
			Version:       "1.0.0",
			Environment:   "development",
		})
	}
	return globalLogger
}

func Debug(message string, ctx ...LogContext) {
	GetGlobalLogger().Debug(message, ctx...)
}

func Info(message string, ctx ...LogContext) {
	GetGlobalLogger().Info(message, ctx...)
}

func Warn(message string, ctx ...LogContext) {
	GetGlobalLogger().Warn(message, ctx...)
}

func Error(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Error(message, err, ctx...)
}

func Fatal(message string, err error, ctx ...LogContext) {
	GetGlobalLogger().Fatal(message, err, ctx...)
}

// WithContext creates a context logger from the global logger
func WithContext(ctx LogContext) *ContextLogger {
	return GetGlobalLogger().WithContext(ctx)
}

// WithStore creates a context logger for a store and provider
func WithStore(storeID int64, provider string) *ContextLogger {
	return WithContext(LogContext{StoreID: storeID, Provider: provider})
}
