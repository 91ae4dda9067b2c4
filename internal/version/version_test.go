package version

import (
	"runtime/debug"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFillFromBuildInfo(t *testing.T) {
	tests := []struct {
		name    string
		info    BuildInfo
		bi      debug.BuildInfo
		want    string
		commit  string
		dirty   bool
		release bool
	}{
		{
			name:    "ldflags win",
			info:    BuildInfo{Version: "v1.2.0", GitCommit: "abcdef1234"},
			bi:      debug.BuildInfo{Main: debug.Module{Version: "v0.0.1"}, Settings: []debug.BuildSetting{{Key: "vcs.revision", Value: "ffffffffff"}}},
			want:    "v1.2.0",
			commit:  "abcdef1234",
			release: true,
		},
		{
			name:    "module version",
			info:    BuildInfo{Version: "dev", GitCommit: "unknown"},
			bi:      debug.BuildInfo{Main: debug.Module{Version: "v0.3.0"}},
			want:    "v0.3.0",
			commit:  "unknown",
			release: true,
		},
		{
			name: "vcs revision of a dirty tree",
			info: BuildInfo{Version: "dev", GitCommit: "unknown"},
			bi: debug.BuildInfo{Main: debug.Module{Version: "(devel)"}, Settings: []debug.BuildSetting{
				{Key: "vcs.revision", Value: "0123456789abcdef"},
				{Key: "vcs.modified", Value: "true"},
			}},
			want:   "dev-0123456",
			commit: "0123456789abcdef",
			dirty:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := tt.info
			fillFromBuildInfo(&info, &tt.bi)
			assert.Equal(t, tt.want, info.Version)
			assert.Equal(t, tt.commit, info.GitCommit)
			assert.Equal(t, tt.dirty, info.Dirty)
			assert.Equal(t, tt.release, info.IsRelease())
		})
	}
}

func TestShortAndString(t *testing.T) {
	info := &BuildInfo{
		Version:   "v1.0.0",
		GitCommit: "abcdef1234",
		BuildTime: time.Date(2024, 3, 7, 9, 5, 3, 0, time.UTC),
		GoVersion: "go1.24.4",
		Platform:  "linux/amd64",
	}
	assert.Equal(t, "v1.0.0 (abcdef1)", info.Short())
	assert.Equal(t, "Version: v1.0.0\nCommit: abcdef1234\nBuilt: 2024-03-07T09:05:03Z\nGo: go1.24.4\nPlatform: linux/amd64", info.String())

	dev := &BuildInfo{Version: "dev-abcdef1", GitCommit: "abcdef1234"}
	assert.Equal(t, "dev-abcdef1", dev.Short())
}

func TestParseBuildTime(t *testing.T) {
	assert.True(t, parseBuildTime("unknown").IsZero())
	assert.True(t, parseBuildTime("yesterday").IsZero())
	assert.Equal(t, 2024, parseBuildTime("2024-03-07T09:05:03Z").Year())
	assert.Equal(t, 5, parseBuildTime("2024-03-07 09:05:03").Minute())
}
