//go:build !linux

package scheduler

import "github.com/rs/zerolog"

// clampToRlimit is a no-op outside Linux; RLIMIT_NPROC clamping is
// Linux-specific.
func clampToRlimit(requested int, log zerolog.Logger) int {
	return requested
}
