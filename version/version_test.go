package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	assert.Equal(t, "abcdef1", Info{CommitHash: "abcdef1234567"}.Short())
	assert.Equal(t, "abc", Info{CommitHash: "abc"}.Short())
}

func TestString(t *testing.T) {
	info := Info{Version: "v0.3.0", CommitHash: "abcdef1234567", BuildTime: "2024-05-12"}
	assert.Equal(t, "finkg v0.3.0 (commit abcdef1, built 2024-05-12)", info.String())

	info.Modified = true
	assert.Contains(t, info.String(), "abcdef1-dirty")
}

func TestGetFillsUnknowns(t *testing.T) {
	info := Get()
	assert.NotEmpty(t, info.CommitHash)
	assert.NotEmpty(t, info.BuildTime)
	assert.True(t, strings.Contains(info.Platform, "/"))
}
