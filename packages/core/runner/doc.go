// Package runner executes drivetest test sets and keeps the run's state.
//
// It provides functionality for:
//   - Adding tests from files, directories and manifests
//   - Tag filtering, seeded shuffling, chunking and repeats
//   - Sequential execution through the handler registry
//   - Crash detection after every test, stopping the run on a crash
//
// A Runner is used for exactly one run.
package runner
