package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInfoString(t *testing.T) {
	info := Info{Version: "v0.3.0", CommitHash: "0123456789abcdef", BuildTime: "2024-01-01"}
	assert.Equal(t, "chrono v0.3.0 (commit 0123456, built 2024-01-01)", info.String())
	assert.Equal(t, "0123456", info.Short())
}

func TestShortKeepsShortHashes(t *testing.T) {
	assert.Equal(t, "dev", Info{CommitHash: "dev"}.Short())
}

func TestGetFillsPlatform(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
