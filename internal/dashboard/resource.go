package dashboard

import (
	"tradedash/internal/poller"
)

// Resource is the dashboard's view of one poller.
type Resource interface {
	Name() string
	Snapshot() any
	SetActive(active bool)
	Refresh()
}

type pollerResource[T any] struct {
	*poller.Poller[T]
}

func (r pollerResource[T]) Snapshot() any {
	return r.State()
}

// FromPoller exposes a typed poller as a Resource.
func FromPoller[T any](p *poller.Poller[T]) Resource {
	return pollerResource[T]{p}
}

// Topic is the websocket topic carrying updates for a resource.
func Topic(resource string) string {
	return "resource." + resource
}
