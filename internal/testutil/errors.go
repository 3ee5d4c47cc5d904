// Package testutil provides testing utilities for autocompose.
//
// This package contains mock errors and test doubles used across test files.
// It should only be imported by test files (*_test.go).
package testutil

import "errors"

// Mock errors for testing purposes.
var (
	// ErrMockSpawn simulates a subprocess that could not be started.
	ErrMockSpawn = errors.New("exec: no such file or directory")

	// ErrMockExit simulates a subprocess exiting non-zero.
	ErrMockExit = errors.New("exit status 1")

	// ErrMockRepository simulates an unreadable ostree repository.
	ErrMockRepository = errors.New("repository unreadable")

	// ErrMockBuild simulates a slot build that fails partway.
	ErrMockBuild = errors.New("build failed")
)
