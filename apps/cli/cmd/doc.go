// Package cmd implements the drivetest CLI commands using Cobra.
//
// Available commands:
//   - run: Execute tests against a remote driver session
//   - list: Show the tests a run would execute
//   - validate: Check manifests, testvars and configuration without running
//   - init: Create a new drivetest project with example files
//   - history: Show recorded runs
//   - version: Show drivetest version information
//
// run exits with 0 when every test passed, 10 when a test failed or the
// driver crashed, and 1 when the run could not complete.
package cmd
