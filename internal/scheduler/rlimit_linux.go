//go:build linux

package scheduler

import (
	"syscall"

	"github.com/rs/zerolog"
)

// rlimitFloor is the fallback ceiling: if RLIMIT_NPROC comes back
// non-positive or cannot be read, we still need a sane worker ceiling.
const rlimitFloor = 127000

// rlimitNproc is RLIMIT_NPROC, which the syscall package doesn't
// export on Linux; the numeric value is consistent across Linux architectures.
const rlimitNproc = 0x6

// clampToRlimit bounds requested to the process's RLIMIT_NPROC soft limit,
// raising the soft limit to the hard limit first if there's room. If the
// resulting limit is non-positive, requested is clamped to rlimitFloor
// instead.
func clampToRlimit(requested int, log zerolog.Logger) int {
	var rl syscall.Rlimit
	if err := syscall.Getrlimit(rlimitNproc, &rl); err != nil {
		log.Debug().Err(err).Msg("scheduler: RLIMIT_NPROC unavailable, bounding configured max_workers by the fallback floor")
		return boundedBy(requested, rlimitFloor)
	}

	if rl.Cur < rl.Max {
		raised := rl
		raised.Cur = rl.Max
		if err := syscall.Setrlimit(rlimitNproc, &raised); err == nil {
			rl = raised
		}
	}

	ceiling := int(rl.Cur)
	if ceiling <= 0 {
		ceiling = rlimitFloor
	}
	return boundedBy(requested, ceiling)
}

func boundedBy(requested, ceiling int) int {
	if requested > ceiling {
		return ceiling
	}
	return requested
}
