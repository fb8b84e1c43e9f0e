// Package middleware wraps a ports.StateStore with cross-cutting behavior.
// Every middleware keeps the compare-and-set contract of the store it wraps.
package middleware
