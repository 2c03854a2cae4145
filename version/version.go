// Package version holds build information injected with -ldflags, e.g.
//
//	go build -ldflags "-X github.com/jackzampolin/leapocr/version.GitRelease=v0.2.0"
package version

import "runtime"

var (
	// GitRelease is the tagged release, or "dev" for local builds.
	GitRelease = "dev"

	// GitCommit is the commit hash the binary was built from.
	GitCommit = "unknown"

	// GitCommitDate is the commit date of GitCommit.
	GitCommitDate = "unknown"

	// GoInfo is the Go toolchain used for the build.
	GoInfo = runtime.Version() + " " + runtime.GOOS + "/" + runtime.GOARCH
)
