package version

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShort(t *testing.T) {
	tests := []struct {
		name string
		info Info
		want string
	}{
		{"release with commit", Info{Version: "v1.2.0", GitCommit: "abc1234def"}, "v1.2.0 (abc1234)"},
		{"dev with commit", Info{Version: "dev", GitCommit: "abc1234def"}, "dev-abc1234"},
		{"unknown commit", Info{Version: "v1.2.0", GitCommit: "unknown"}, "v1.2.0"},
		{"short commit", Info{Version: "dev", GitCommit: "abc"}, "dev"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.info.Short())
		})
	}
}

func TestParseBuildTime(t *testing.T) {
	want := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)
	assert.True(t, want.Equal(parseBuildTime("2024-03-01T12:30:00Z")))
	assert.True(t, want.Equal(parseBuildTime("2024-03-01 12:30:00")))
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.True(t, parseBuildTime("yesterday").IsZero())
}

func TestGetUsesStampedValues(t *testing.T) {
	oldVersion, oldCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = oldVersion, oldCommit })

	Version, GitCommit = "v9.9.9", "0123456789"
	info := Get()
	assert.Equal(t, "v9.9.9", info.Version)
	assert.Equal(t, "0123456789", info.GitCommit)
	assert.NotEmpty(t, info.GoVersion)
	assert.Contains(t, info.Platform, "/")
}
