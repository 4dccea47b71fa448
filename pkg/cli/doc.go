// Package cli defines the arc command-line interface: the collect, stop,
// reset-failed, and download subcommands, their flags, and the shared
// plumbing that turns parsed flags into a selected target set and a fan-out
// run.
package cli
