package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admission/internal/models"
	"admission/internal/version"
)

func TestSetup_JSONWithVersionFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	logger, closer, err := Setup(models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	}, version.Info{Version: "v9.9.9", InstanceID: "instance-abc"})
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info("decision recorded", slog.String("identity", "client-1"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(data, &record))
	assert.Equal(t, "decision recorded", record["msg"])
	assert.Equal(t, "v9.9.9", record["version"])
	assert.Equal(t, "instance-abc", record["instance_id"])
	assert.Equal(t, "client-1", record["identity"])
}

func TestSetup_LevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")
	logger, closer, err := Setup(models.LoggingConfig{
		Level:    "warn",
		Format:   "text",
		Output:   "file",
		FilePath: path,
	}, version.Info{})
	require.NoError(t, err)

	logger.Debug("suppressed")
	logger.Info("suppressed too")
	logger.Warn("kept")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "kept")
	assert.NotContains(t, string(data), "suppressed")
}

func TestSetup_InvalidLevel(t *testing.T) {
	_, _, err := Setup(models.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"}, version.Info{})
	assert.Error(t, err)
}

func TestSetup_FileOutputRequiresPath(t *testing.T) {
	_, _, err := Setup(models.LoggingConfig{Level: "info", Format: "json", Output: "file"}, version.Info{})
	assert.Error(t, err)
}

func TestSetup_StdoutHasNoCloser(t *testing.T) {
	_, closer, err := Setup(models.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, version.Info{})
	require.NoError(t, err)
	assert.Nil(t, closer)
}
