// Package debug routes the scheduler's debug hook into a zap logger.
package debug

import (
	"go.uber.org/zap"

	"github.com/recera/kgview/pkg/scheduler"
)

// EnableLogging sends scheduler debug output to logger at debug level.
// A nil logger disables it.
func EnableLogging(logger *zap.Logger) {
	if logger == nil {
		scheduler.SetDebugLog(nil)
		return
	}
	sugar := logger.Named("scheduler").Sugar()
	scheduler.SetDebugLog(func(args ...any) {
		sugar.Debugln(args...)
	})
}
