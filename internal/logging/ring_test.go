package logging

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestRing_RecordsLevelsAndFields(t *testing.T) {
	ring := NewRing(10)
	logger := zap.New(ring.Core(zapcore.DebugLevel)).With(zap.String("posting_id", "123"))

	logger.Debug("probe")
	logger.Info("scanning")
	logger.Info("saved", OutcomeSuccess, zap.String("resume_id", "9"))
	logger.Warn("slow")
	logger.Error("failed")

	entries := ring.Recent(0)
	require.Len(t, entries, 5)

	levels := make([]string, len(entries))
	for i, e := range entries {
		levels[i] = e.Level
	}
	assert.Equal(t, []string{LevelDebug, LevelInfo, LevelSuccess, LevelWarning, LevelError}, levels)
	assert.Equal(t, "123", entries[2].Fields["posting_id"])
	assert.Equal(t, "9", entries[2].Fields["resume_id"])
	assert.NotEmpty(t, entries[0].ID)
}

func TestRing_KeepsNewest(t *testing.T) {
	ring := NewRing(3)
	logger := zap.New(ring.Core(nil))

	for i := 0; i < 5; i++ {
		logger.Info(fmt.Sprintf("entry %d", i))
	}

	entries := ring.Recent(0)
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 2", entries[0].Message)
	assert.Equal(t, "entry 4", entries[2].Message)

	last := ring.Recent(2)
	require.Len(t, last, 2)
	assert.Equal(t, "entry 3", last[0].Message)
}

func TestRing_Clear(t *testing.T) {
	ring := NewRing(3)
	logger := zap.New(ring.Core(nil))
	logger.Info("one")

	ring.Clear()
	assert.Empty(t, ring.Recent(0))
}

func TestRing_Subscribe(t *testing.T) {
	ring := NewRing(3)
	logger := zap.New(ring.Core(nil))

	ch, cancel := ring.Subscribe()
	logger.Info("live")

	select {
	case e := <-ch:
		assert.Equal(t, "live", e.Message)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive entry")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// writing after cancel must not panic
	logger.Info("after cancel")
}

func TestRing_LevelFiltering(t *testing.T) {
	ring := NewRing(3)
	logger := zap.New(ring.Core(zapcore.WarnLevel))
	logger.Info("ignored")
	logger.Warn("kept")

	entries := ring.Recent(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Message)
}

func TestNew_TeesIntoRing(t *testing.T) {
	ring := NewRing(5)
	logger, err := New("dev", ring)
	require.NoError(t, err)

	logger.Info("hello")
	entries := ring.Recent(0)
	require.Len(t, entries, 1)
	assert.Equal(t, "hello", entries[0].Message)
}
