// Package watch provides the live-reload side of offsetwatch. It monitors
// the game's settings file for changes, debounces the bursts of raw
// filesystem events a single save produces, and hands each coalesced
// change to a notifier that re-reads the file and publishes the result.
package watch
