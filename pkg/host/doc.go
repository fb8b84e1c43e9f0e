// Package host wires runners into a long-lived server process: a run-once
// middleware triggering the upgrade on the first request, and a read-only
// HTTP surface reporting the state of every runner.
package host
