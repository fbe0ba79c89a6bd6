package detect

// bytesPerMiB is the divisor for MiB conversion: 1024 * 1024.
const bytesPerMiB = 1 << 20

// ConvertSize converts a raw byte count to the given unit. MiB conversion
// rounds half up, so a document exactly on the half-mebibyte boundary
// lands in the bigger bucket. Negative sizes clamp to zero; failed size
// lookups arrive here by that convention.
func ConvertSize(rawBytes int64, unit Unit) int64 {
	if rawBytes < 0 {
		rawBytes = 0
	}
	if unit == UnitMiB {
		return (rawBytes + bytesPerMiB/2) / bytesPerMiB
	}
	return rawBytes
}

// Classify reports whether a document counts as big: its converted size
// reaches the threshold, or the configured predicate accepts it. The
// predicate is consulted only when the threshold alone does not decide.
func Classify(docID string, rawBytes int64, cfg *Config) bool {
	size := ConvertSize(rawBytes, cfg.Unit)
	if size >= cfg.Threshold {
		return true
	}
	if cfg.Predicate != nil {
		return cfg.Predicate(docID, size)
	}
	return false
}
