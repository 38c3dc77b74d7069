package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/natefinch/lumberjack.v2"
)

func TestOpenLogFileWithoutRotation(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "logs", "walletlink.log")

	w, err := openLogFile(Config{File: logFile})
	require.NoError(t, err)
	defer w.Close()

	_, isRotating := w.(*lumberjack.Logger)
	assert.False(t, isRotating)

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestOpenLogFileRotatesBySize(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "walletlink.log")

	w, err := openLogFile(Config{File: logFile, MaxSize: 1, MaxAge: 7})
	require.NoError(t, err)
	defer w.Close()

	rotating, ok := w.(*lumberjack.Logger)
	require.True(t, ok)
	assert.Equal(t, maxBackups, rotating.MaxBackups)

	chunk := bytes.Repeat([]byte("x"), 700*1024)
	_, err = w.Write(chunk)
	require.NoError(t, err)
	_, err = w.Write(chunk)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	info, err := os.Stat(logFile)
	require.NoError(t, err)
	assert.Equal(t, int64(len(chunk)), info.Size())
}

func TestOpenLogFileCreatesDirectory(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "a", "b", "walletlink.log")

	w, err := openLogFile(Config{File: logFile, MaxSize: 10})
	require.NoError(t, err)
	defer w.Close()

	_, err = os.Stat(filepath.Dir(logFile))
	assert.NoError(t, err)
}
