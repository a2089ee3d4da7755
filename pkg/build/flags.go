// SPDX-License-Identifier: MIT
//
// Package build exposes metadata injected at link time:
//
//	go build -ldflags "-X lipsync/pkg/build.buildName=lipsync \
//	  -X lipsync/pkg/build.buildVersion=0.3.0 \
//	  -X lipsync/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X lipsync/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds run with "unknown" values.
package build

import (
	"errors"
	"fmt"
)

// Description is the one-line summary shown in help output.
const Description = "Real-time viseme prediction from microphone audio"

type ldFlags struct {
	Name        string
	Time        string
	Commit      string
	Version     string
	Description string
}

// String formats the flags for --version.
func (f *ldFlags) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", f.Name, f.Version, f.Commit, f.Time)
}

var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "lipsync",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "unknown",
		Description: Description,
	}
)

// Initialize copies the linker-injected values into the build flags. It
// reports every missing value; values that are present are applied
// regardless.
func Initialize() error {
	var errs []error
	set := func(dst *string, val, name string) {
		if val == "" {
			errs = append(errs, fmt.Errorf("%s is required", name))
			return
		}
		*dst = val
	}
	set(&buildFlags.Name, buildName, "BuildName")
	set(&buildFlags.Time, buildTime, "BuildTime")
	set(&buildFlags.Commit, buildCommit, "BuildCommit")
	set(&buildFlags.Version, buildVersion, "BuildVersion")
	return errors.Join(errs...)
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}
