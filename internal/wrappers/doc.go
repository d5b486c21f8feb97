// Package wrappers owns the StarDist and Transformix tool wrappers.
//
// Ownership boundary:
// - tool metadata and operation lists
//
// - task settings to argument-list translation
//
// - resolving each run's environment from a preference snapshot
//
// Wrappers never build command vectors themselves; envexec does.
package wrappers
