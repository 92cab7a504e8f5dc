package step

// Policy carries the per-section failure policy. Every section may have one;
// in practice only winget ships populated lists, but the mechanism is
// deliberately general rather than special-cased to one ecosystem.
type Policy struct {
	// IgnoreIDs lists package identifiers whose upgrade failures are
	// reclassified as skipped and do not flip the section to FAIL.
	IgnoreIDs []string
	// RetryIDs lists package identifiers that get a second upgrade attempt
	// when still pending or blocked by a running application.
	RetryIDs []string
}

// Ignored reports whether the package id is on the ignore list.
func (p Policy) Ignored(id string) bool {
	return contains(p.IgnoreIDs, id)
}

// ShouldRetry reports whether the package id is on the retry list.
func (p Policy) ShouldRetry(id string) bool {
	return contains(p.RetryIDs, id)
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}
