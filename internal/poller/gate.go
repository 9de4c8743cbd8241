package poller

// ShouldSkip is the cache gate: a hidden view that already holds data for
// the same parameters does not refetch.
func ShouldSkip(isActive, hasFetchedOnce, paramsChanged bool) bool {
	return !isActive && hasFetchedOnce && !paramsChanged
}
