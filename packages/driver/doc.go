// Package driver provides the client for the remote automation driver.
//
// The harness talks to a driver process over HTTP with JSON bodies:
//   - GET /status reports readiness and whether the process crashed
//   - POST /session opens the session tests run in
//   - POST /session/{id}/execute/sync runs a test script
//   - DELETE /session/{id} closes the session
//
// The client is used for script execution and, through the CrashChecker
// interface, for crash detection after every test.
package driver
