// Package version carries build information stamped in via ldflags:
//
//	go build -ldflags "-X github.com/teranos/chronograph/version.Version=v0.3.0 \
//	    -X github.com/teranos/chronograph/version.CommitHash=$(git rev-parse HEAD)"
package version

import (
	"fmt"
	"runtime"
)

// Set at build time
var (
	CommitHash = "dev"
	BuildTime  = "unknown"
	Version    = "dev"
)

// Info contains version and build information
type Info struct {
	Version    string `json:"version"`
	CommitHash string `json:"commit_hash"`
	BuildTime  string `json:"build_time"`
	GoVersion  string `json:"go_version"`
	Platform   string `json:"platform"`
}

// Get returns the running binary's build information
func Get() Info {
	return Info{
		Version:    Version,
		CommitHash: CommitHash,
		BuildTime:  BuildTime,
		GoVersion:  runtime.Version(),
		Platform:   runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// String renders the one-line banner printed by `chrono version`
func (i Info) String() string {
	return fmt.Sprintf("chrono %s (commit %s, built %s)", i.Version, i.Short(), i.BuildTime)
}

// Short abbreviates the commit hash
func (i Info) Short() string {
	if len(i.CommitHash) > 7 {
		return i.CommitHash[:7]
	}
	return i.CommitHash
}
