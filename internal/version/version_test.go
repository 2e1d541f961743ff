package version

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetInfo_Cached(t *testing.T) {
	first := GetInfo()
	second := GetInfo()

	assert.Equal(t, first, second)

	_, err := uuid.Parse(first.InstanceID)
	require.NoError(t, err)
	assert.NotEmpty(t, first.Hostname)
}

func TestInfoString(t *testing.T) {
	i := Info{Version: "v1.2.3", GitCommit: "abc1234", BuildDate: "2026-01-01T00:00:00Z"}
	assert.Equal(t, "admission version v1.2.3 (commit: abc1234, built: 2026-01-01T00:00:00Z)", i.String())
}
