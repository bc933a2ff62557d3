// Package obs is the logging and metrics seam the client core accepts as a
// parameter instead of importing a concrete backend: the teacher's binaries
// call glog directly (glog.Infof, glog.V(1).Infof, glog.Exitf), a pattern
// appropriate for a single verifier command but not for a library other
// programs embed. Core code here takes a *zap.SugaredLogger through this
// package's thin Logger alias and a nil-safe *Metrics, so a caller can pass
// nil for either. This package imports zap and prometheus, so importing
// package client still links both in.
package obs

import "go.uber.org/zap"

// Logger is the structured logger the client core accepts. cmd/warg
// constructs the real one from zap's production config; tests pass nil,
// which client.New replaces with NewNop().
type Logger = zap.SugaredLogger

// NewNop returns a Logger that discards everything, for callers (tests,
// library embedders who don't want logging) that don't pass their own.
func NewNop() *Logger {
	return zap.NewNop().Sugar()
}
