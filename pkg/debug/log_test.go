package debug

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/recera/kgview/pkg/scheduler"
)

func TestEnableLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	EnableLogging(zap.New(core))
	defer EnableLogging(nil)

	l := scheduler.New(nil, time.Millisecond)
	l.Stop()

	entries := logs.FilterLoggerName("scheduler").All()
	assert.NotEmpty(t, entries)
	assert.Contains(t, entries[len(entries)-1].Message, "[Scheduler] stopped")
}
