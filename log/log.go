// Package log roots every gatewaycore package's structured logging in one
// place: a thin wrapper over log15.Logger so call sites write
// log.New("peerqueue") instead of repeating log15's two-line setup, and so
// a future handler swap (e.g. to a JSON file handler) touches one file.
package log

import (
	"os"

	"github.com/inconshreveable/log15"
)

// Logger is the structured logger every gatewaycore package logs through.
// It is log15.Logger verbatim; the alias exists so callers import this
// package instead of log15 directly.
type Logger = log15.Logger

// New returns a Logger rooted with a "pkg" context key, matching the
// per-subsystem root log15.New("pkg", name) convention used throughout
// the module (peer cooling/warming, cache evictions, DNS re-resolution,
// rate-limit rejections all log through a Logger built this way).
func New(pkg string) Logger {
	return log15.New("pkg", pkg)
}

// SetLevel resets the root handler to filter below the given level,
// wrapping the default terminal handler. Intended for use by an outer
// CLI/main at startup; gatewaycore packages never call this themselves.
func SetLevel(lvl log15.Lvl) {
	log15.Root().SetHandler(log15.LvlFilterHandler(lvl, log15.StreamHandler(os.Stderr, log15.TerminalFormat())))
}
