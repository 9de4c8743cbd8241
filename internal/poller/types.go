package poller

import (
	"context"
	"maps"
	"slices"
	"strings"
	"time"
)

// Phase is where a poller sits in its fetch cycle.
type Phase string

const (
	PhaseIdle           Phase = "idle"
	PhaseProbing        Phase = "probing"
	PhaseFetching       Phase = "fetching"
	PhaseRetryScheduled Phase = "retry_scheduled"
	PhaseClosed         Phase = "closed"
)

// Params selects what a resource fetches. Symbols doubles as screen ids
// for the live-screens resource.
type Params struct {
	Symbols  []string `json:"symbols"`
	Period   string   `json:"period,omitempty"`
	Interval string   `json:"interval,omitempty"`
}

func (p Params) Empty() bool {
	return len(p.Symbols) == 0
}

func (p Params) clone() Params {
	p.Symbols = slices.Clone(p.Symbols)
	return p
}

// KeyFunc derives the cache key used to decide whether parameters changed.
type KeyFunc func(Params) string

// Key is the default KeyFunc. Symbol order is part of the key.
func Key(p Params) string {
	return strings.Join(p.Symbols, ",") + "|" + p.Period + "|" + p.Interval
}

// Prober checks backend liveness before each data fetch.
type Prober interface {
	Probe(ctx context.Context) bool
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context) bool

func (f ProberFunc) Probe(ctx context.Context) bool {
	return f(ctx)
}

// FetchFunc loads one resource snapshot keyed by symbol (or screen id).
type FetchFunc[T any] func(ctx context.Context, params Params) (map[string]T, error)

// State is a point-in-time copy of a poller's fetch state.
type State[T any] struct {
	Data         map[string]T `json:"data"`
	Loading      bool         `json:"loading"`
	Error        string       `json:"error,omitempty"`
	LastFetched  time.Time    `json:"last_fetched"`
	RetryCount   int          `json:"retry_count"`
	BackendReady bool         `json:"backend_ready"`

	Phase   Phase  `json:"phase"`
	Active  bool   `json:"active"`
	Polling bool   `json:"polling"`
	Params  Params `json:"params"`

	// Version increases with every change so consumers can drop stale snapshots.
	Version uint64 `json:"version"`
}

func (s State[T]) clone() State[T] {
	s.Data = maps.Clone(s.Data)
	s.Params = s.Params.clone()
	return s
}

// Config holds per-resource timing.
type Config struct {
	PollingInterval time.Duration // refresh cadence while active
	InitialTimeout  time.Duration // first load may hit a cold backend
	RetryTimeout    time.Duration
	Retry           RetryPolicy
}

func DefaultConfig() Config {
	return Config{
		PollingInterval: 30 * time.Second,
		InitialTimeout:  60 * time.Second,
		RetryTimeout:    30 * time.Second,
		Retry:           DefaultRetryPolicy(),
	}
}

type trigger struct {
	initial bool
	retry   bool
	force   bool // manual refresh bypasses the cache gate
}
