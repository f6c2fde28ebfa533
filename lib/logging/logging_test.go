package logging_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filemass/filemass/lib/config"
	"github.com/filemass/filemass/lib/logging"
)

func TestNewLoggerDefaultsToStdout(t *testing.T) {
	store, err := config.Create(filepath.Join(t.TempDir(), "fmrepo.conf"), nil)
	require.NoError(t, err)

	logger, err := logging.NewLogger(store)
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("repository opened", map[string]interface{}{"uuid": "abc-123"})
}

func TestNewLoggerNilStoreFallsBackToBasic(t *testing.T) {
	logger, err := logging.NewLogger(nil)
	require.NoError(t, err)
	defer logger.Close()

	logger.Info("no repository open yet")
}

func TestParseLogLevelRoundTrip(t *testing.T) {
	assert.Equal(t, logging.DEBUG, logging.ParseLogLevel("debug"))
	assert.Equal(t, logging.WARN, logging.ParseLogLevel("WARNING"))
	assert.Equal(t, logging.INFO, logging.ParseLogLevel("bogus"))
	assert.Equal(t, "ERROR", logging.ERROR.String())
}

func TestNewLoggerWritesToFile(t *testing.T) {
	dir := t.TempDir()
	store, err := config.Create(filepath.Join(dir, "fmrepo.conf"), map[string]string{
		"logging.output": "file",
		"logging.dir":    filepath.Join(dir, "logs"),
		"logging.level":  "debug",
	})
	require.NoError(t, err)

	logger, err := logging.NewLogger(store)
	require.NoError(t, err)
	logger.Debugf("added block %d", 3)
	require.NoError(t, logger.Close())
}
