package logging

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONLogger(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)
	logger.Info("tag enqueued", "height", 5)

	require.Equal(`{"height":5,"level":"info","msg":"tag enqueued"}`+"\n", buf.String())

	buf.Reset()
	logger.With("module", "cetf").Debug("cleared")
	require.Equal(`{"level":"debug","module":"cetf","msg":"cleared"}`+"\n", buf.String())
}

func TestLevelFiltering(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	logger := NewJSONLogger(&buf)
	logger.level = LevelWarn

	logger.Debug("dropped")
	logger.Info("dropped")
	require.Empty(buf.String())

	logger.Warn("kept")
	require.Contains(buf.String(), `"msg":"kept"`)
}

func TestLevelAndFormatFlags(t *testing.T) {
	require := require.New(t)

	var lvl Level
	require.NoError(lvl.Set("debug"))
	require.Equal(LevelDebug, lvl)
	require.Equal("DEBUG", lvl.String())
	require.Error(lvl.Set("verbose"))

	var f Format
	require.NoError(f.Set("json"))
	require.Equal(FmtJSON, f)
	require.Error(f.Set("yaml"))
}

func TestModuleLevels(t *testing.T) {
	require := require.New(t)

	r := &registry{defaultLevel: LevelError}
	r.setModuleLevels(map[string]Level{
		"cetf":         LevelInfo,
		"cetf/storage": LevelDebug,
	})

	require.Equal(LevelDebug, r.levelFor("cetf/storage/badger"), "longest prefix wins")
	require.Equal(LevelInfo, r.levelFor("cetf/host"))
	require.Equal(LevelError, r.levelFor("cmd"), "default level")
}

func TestEarlyLoggers(t *testing.T) {
	require := require.New(t)

	r := &registry{defaultLevel: LevelError}
	early := r.getLogger("cetf/early")
	require.Len(r.pending, 1)

	// Early loggers write nowhere until a sink is attached.
	early.Error("dropped")

	var buf bytes.Buffer
	r.attachLocked(NewJSONLogger(&buf).logger, LevelError, map[string]Level{"cetf": LevelDebug})
	require.Empty(r.pending)

	early.Debug("attached")
	require.Contains(buf.String(), `"msg":"attached"`)
	require.Contains(buf.String(), `"module":"cetf/early"`)
}

func TestInitializeOnce(t *testing.T) {
	require := require.New(t)

	saved := root
	defer func() { root = saved }()
	root = &registry{sink: saved.sink, defaultLevel: LevelError}

	var buf bytes.Buffer
	logger := GetLogger("cetf/test")
	require.NoError(Initialize(&buf, FmtLogfmt, LevelInfo, nil), "Initialize")
	require.Error(Initialize(&buf, FmtLogfmt, LevelInfo, nil), "Initialize twice")
	require.Equal(LevelInfo, GetLevel())

	logger.Info("hello", "height", 7)
	require.Contains(buf.String(), "level=info")
	require.Contains(buf.String(), "msg=hello")
	require.Contains(buf.String(), "height=7")
	require.Contains(buf.String(), "module=cetf/test")
}
