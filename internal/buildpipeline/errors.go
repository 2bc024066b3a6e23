package buildpipeline

import "errors"

var (
	// ErrProjectNotFound is returned when no Cargo.toml encloses the source path.
	ErrProjectNotFound = errors.New("project not found")
	// ErrToolchainLaunch is returned when a toolchain executable cannot be started.
	ErrToolchainLaunch = errors.New("toolchain launch failure")
)
