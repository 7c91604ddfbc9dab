package segment

import "time"

// HalfWidths converts the before/after window durations into sample counts for
// a recording sampled at rate Hz. Each duration is first truncated to whole
// samples and then halved with integer division: at 250 Hz, 400ms/700ms give
// 50 samples before the peak and 87 after.
func HalfWidths(before, after time.Duration, rate int) (pre, post int) {
	return samples(before, rate) / 2, samples(after, rate) / 2
}

func samples(d time.Duration, rate int) int {
	return int(d.Nanoseconds() * int64(rate) / int64(time.Second))
}

// Bounds is the half-open sample range around peak, clipped into [0, n).
// Windows that cross a recording edge come back shorter, never padded.
func Bounds(peak, pre, post, n int) (start, end int) {
	start = max(0, peak-pre)
	end = min(n, peak+post)
	if start > end {
		start = end
	}
	return start, end
}
