// Package scroll decides when a gallery should load more as its sentinel
// element scrolls into view.
package scroll

import "log/slog"

type Trigger struct {
	Loading     func() bool
	HasNextPage func() bool
	OnLoadMore  func()
}

// Visible is called whenever the sentinel comes into view. It reports
// whether OnLoadMore was invoked.
func (t Trigger) Visible() bool {
	if t.OnLoadMore == nil {
		return false
	}
	if t.Loading != nil && t.Loading() {
		slog.Debug("Sentinel visible while loading, ignoring")
		return false
	}
	if t.HasNextPage != nil && !t.HasNextPage() {
		slog.Debug("Sentinel visible but nothing left to load")
		return false
	}
	t.OnLoadMore()
	return true
}
