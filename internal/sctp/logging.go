package sctp

import (
	"fmt"

	"github.com/pion/logging"
)

// newLoggerFactory adapts this package's Logger (a logr.Logger) to the
// pion/logging.LoggerFactory interface pion/sctp and pion/datachannel
// expect, so their internal diagnostics flow through the same sink as the
// rest of this core instead of pion's own default stdout logger.
func newLoggerFactory() logging.LoggerFactory {
	return &factory{}
}

type factory struct{}

func (f *factory) NewLogger(scope string) logging.LeveledLogger {
	return &adapter{scope: scope}
}

type adapter struct {
	scope string
}

func (a *adapter) Trace(msg string)                          { Logger.V(2).Info(msg, "scope", a.scope) }
func (a *adapter) Tracef(format string, args ...interface{})  { Logger.V(2).Info(sprintf(format, args...), "scope", a.scope) }
func (a *adapter) Debug(msg string)                           { Logger.V(1).Info(msg, "scope", a.scope) }
func (a *adapter) Debugf(format string, args ...interface{})  { Logger.V(1).Info(sprintf(format, args...), "scope", a.scope) }
func (a *adapter) Info(msg string)                            { Logger.Info(msg, "scope", a.scope) }
func (a *adapter) Infof(format string, args ...interface{})   { Logger.Info(sprintf(format, args...), "scope", a.scope) }
func (a *adapter) Warn(msg string)                            { Logger.Info(msg, "scope", a.scope, "level", "warn") }
func (a *adapter) Warnf(format string, args ...interface{})   { Logger.Info(sprintf(format, args...), "scope", a.scope, "level", "warn") }
func (a *adapter) Error(msg string)                           { Logger.Error(nil, msg, "scope", a.scope) }
func (a *adapter) Errorf(format string, args ...interface{})  { Logger.Error(nil, sprintf(format, args...), "scope", a.scope) }

func sprintf(format string, args ...interface{}) string {
	return fmt.Sprintf(format, args...)
}
