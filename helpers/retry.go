package helpers

import "time"

// DefaultRetryDelays is the backoff schedule used between payment lookup
// attempts while provider-side writes catch up.
var DefaultRetryDelays = []time.Duration{
	400 * time.Millisecond,
	800 * time.Millisecond,
	1600 * time.Millisecond,
}

// Retry runs probe up to attempts times, sleeping delays[i] after the i-th
// miss. It stops early on a hit or an error. Probes report found=false for a
// clean miss; a miss after the final attempt returns (false, nil) so the
// caller can fall through to its next strategy.
func Retry(probe func() (bool, error), attempts int, delays []time.Duration) (bool, error) {
	for i := 0; i < attempts; i++ {
		found, err := probe()
		if err != nil || found {
			return found, err
		}

		if i+1 < attempts && i < len(delays) {
			time.Sleep(delays[i])
		}
	}

	return false, nil
}
