// Package envexec owns environment-aware execution of external tools.
//
// Ownership boundary:
// - command vector construction per environment kind and platform
//
// - child process launch with merged stdout/stderr
//
// - concurrent output draining
//
// - run outcome reporting
//
// Lifecycle order:
// - idle -> building -> spawning -> running -> completed
//
// - failed is reachable from every non-terminal state.
//
// envexec never reads persisted preferences. Callers resolve an Environment
// per call and pass it in.
package envexec
