package job

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidDefaultLease indicates the configured default lease duration is not positive.
var ErrInvalidDefaultLease = errors.New("default lease must be positive")

// LeaseSource identifies how a lease duration was resolved.
type LeaseSource string

const (
	// LeaseSourceExplicit indicates the caller supplied a positive duration.
	LeaseSourceExplicit LeaseSource = "explicit"
	// LeaseSourceDefault indicates the default duration was used.
	LeaseSourceDefault LeaseSource = "default"
	// LeaseSourceClamped indicates the request was clamped to the minimum supported value.
	LeaseSourceClamped LeaseSource = "clamped"
)

// LeaseDecision is the outcome of resolving a lease request.
type LeaseDecision struct {
	Seconds   int
	Source    LeaseSource
	Requested time.Duration
}

// UsedDefault reports whether the policy fell back to the default lease.
func (d LeaseDecision) UsedDefault() bool { return d.Source == LeaseSourceDefault }

// Clamped reports whether the request had to be clamped.
func (d LeaseDecision) Clamped() bool { return d.Source == LeaseSourceClamped }

// LeasePolicy turns caller-requested lease durations into the whole seconds
// the job store works in: positive requests truncate to seconds (sub-second
// requests clamp up to 1s), zero means the default, negative clamps to the
// minimum.
type LeasePolicy struct {
	defaultLease time.Duration
}

// NewLeasePolicy constructs a LeasePolicy with the provided default lease duration.
func NewLeasePolicy(defaultLease time.Duration) (*LeasePolicy, error) {
	if defaultLease <= 0 {
		return nil, ErrInvalidDefaultLease
	}
	return &LeasePolicy{defaultLease: defaultLease}, nil
}

// Default returns the configured default lease duration.
func (p *LeasePolicy) Default() time.Duration {
	if p == nil {
		return 0
	}
	return p.defaultLease
}

// Resolve normalises the requested duration to a whole number of seconds.
func (p *LeasePolicy) Resolve(request time.Duration) LeaseDecision {
	d := LeaseDecision{Requested: request}

	switch {
	case p == nil:
		d.Source = LeaseSourceDefault
	case request > 0:
		seconds, clamped := wholeSeconds(request)
		d.Seconds = seconds
		d.Source = LeaseSourceExplicit
		if clamped {
			d.Source = LeaseSourceClamped
		}
	case request == 0:
		d.Seconds, _ = wholeSeconds(p.defaultLease)
		d.Source = LeaseSourceDefault
	default:
		d.Seconds = 1
		d.Source = LeaseSourceClamped
	}
	return d
}

func wholeSeconds(d time.Duration) (int, bool) {
	s := int64(d / time.Second)
	switch {
	case s < 1:
		return 1, true
	case s > int64(math.MaxInt):
		return math.MaxInt, true
	default:
		return int(s), false
	}
}
