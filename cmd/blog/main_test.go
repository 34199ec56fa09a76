package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/irfansharif/blog/pkg/config"
)

func TestOpenLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "blog.log")
	logger, closeLog, err := openLog(config.Config{LogFile: path, LogLevel: "warn"})
	require.NoError(t, err)

	logger.Info("dropped below the level")
	logger.Warn("kept", "key", "value")
	closeLog()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "msg=kept key=value")
	require.NotContains(t, string(b), "dropped")

	// The file is released; reopening appends.
	logger, closeLog, err = openLog(config.Config{LogFile: path, LogLevel: "bogus"})
	require.NoError(t, err)
	logger.Info("second run")
	closeLog()

	b, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "msg=kept")
	require.Contains(t, string(b), `msg="second run"`)
}

func TestOpenLogWithoutFile(t *testing.T) {
	logger, closeLog, err := openLog(config.Config{})
	require.NoError(t, err)
	logger.Error("nowhere")
	closeLog()
}

func TestConnector(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	connect := connector(config.Config{DataDir: t.TempDir()}, log)

	client, err := connect(context.Background(), config.Service{APIKey: "k", Backend: config.BackendMemory})
	require.NoError(t, err)
	require.NoError(t, client.Close())

	client, err = connect(context.Background(), config.Service{APIKey: "k"})
	require.NoError(t, err, "sqlite is the default backend")
	require.NoError(t, client.Close())

	_, err = connect(context.Background(), config.Service{APIKey: "k", Backend: "carrier-pigeon"})
	require.ErrorContains(t, err, `unknown backend "carrier-pigeon"`)
}
