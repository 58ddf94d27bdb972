package backend

import "time"

const bytesPerMegabyte = 1 << 20

// UploadTimeout returns the deadline for an upload of totalBytes.
// The expected duration is totalBytes in (fractional) megabytes times msPerMB;
// the result is never shorter than def. This is a heuristic, not a measured bound.
func UploadTimeout(totalBytes int64, msPerMB int, def time.Duration) time.Duration {
	if totalBytes <= 0 || msPerMB <= 0 {
		return def
	}
	megabytes := float64(totalBytes) / bytesPerMegabyte
	expected := time.Duration(megabytes * float64(msPerMB) * float64(time.Millisecond))
	return max(expected, def)
}
