package event

import (
	"fmt"
	"time"
)

// Kind discriminates the event variants so exporters can dispatch
// without inspecting structure.
type Kind uint8

const (
	KindEvent Kind = iota + 1
	KindTimed
	KindSample
	KindStackBased
)

// String returns the variant tag reported by Name.
func (k Kind) String() string {
	switch k {
	case KindEvent:
		return "Event"
	case KindTimed:
		return "TimedEvent"
	case KindSample:
		return "SampleEvent"
	case KindStackBased:
		return "StackBasedEvent"
	default:
		return "unknown"
	}
}

// Event is implemented by every event variant.
type Event interface {
	// Kind returns the variant discriminant.
	Kind() Kind

	// Name returns the variant tag, e.g. "StackBasedEvent".
	Name() string

	// OccurredAt returns the capture timestamp.
	OccurredAt() time.Time
}

// Compile-time interface checks.
var (
	_ Event = (*Base)(nil)
	_ Event = (*TimedEvent)(nil)
	_ Event = (*SampleEvent)(nil)
	_ Event = (*StackBasedEvent)(nil)
)

// Base is an event happening at a point in time.
type Base struct {
	Timestamp time.Time `json:"timestamp"`
}

// NewBase creates a Base stamped with the current clock value
// unless WithTimestamp is given.
func NewBase(opts ...Option) *Base {
	cfg := newOptions(opts)
	return &Base{Timestamp: cfg.now()}
}

// Kind implements Event.
func (e *Base) Kind() Kind { return KindEvent }

// Name implements Event.
func (e *Base) Name() string { return KindEvent.String() }

// OccurredAt implements Event.
func (e *Base) OccurredAt() time.Time { return e.Timestamp }

// TimestampNS returns the timestamp as Unix nanoseconds.
func (e *Base) TimestampNS() int64 { return e.Timestamp.UnixNano() }

func (e *Base) String() string {
	return fmt.Sprintf("Event(timestamp=%d)", e.TimestampNS())
}

// TimedEvent is an event that has a duration.
// Duration may be filled in after construction once the measured operation
// completes; it is never negative when present.
type TimedEvent struct {
	Base
	Duration Opt[time.Duration] `json:"duration" validate:"omitempty,gte=0"`
}

// NewTimedEvent creates a TimedEvent. Use WithDuration to set the duration up front.
func NewTimedEvent(opts ...Option) *TimedEvent {
	cfg := newOptions(opts)
	return &TimedEvent{
		Base:     Base{Timestamp: cfg.now()},
		Duration: cfg.duration,
	}
}

// Kind implements Event.
func (e *TimedEvent) Kind() Kind { return KindTimed }

// Name implements Event.
func (e *TimedEvent) Name() string { return KindTimed.String() }

func (e *TimedEvent) String() string {
	return fmt.Sprintf("TimedEvent(timestamp=%d, duration=%s)", e.TimestampNS(), e.Duration)
}

// SampleEvent is an event representing a sample gathered from the system.
// SamplingPeriod is the interval between samples at capture time and is
// used by aggregators to weight samples; absent means unknown.
type SampleEvent struct {
	Base
	SamplingPeriod Opt[time.Duration] `json:"sampling_period" validate:"omitempty,gte=0"`
}

// NewSampleEvent creates a SampleEvent.
func NewSampleEvent(opts ...Option) *SampleEvent {
	cfg := newOptions(opts)
	return &SampleEvent{
		Base:           Base{Timestamp: cfg.now()},
		SamplingPeriod: cfg.samplingPeriod,
	}
}

// Kind implements Event.
func (e *SampleEvent) Kind() Kind { return KindSample }

// Name implements Event.
func (e *SampleEvent) Name() string { return KindSample.String() }

func (e *SampleEvent) String() string {
	return fmt.Sprintf("SampleEvent(timestamp=%d, sampling_period=%s)", e.TimestampNS(), e.SamplingPeriod)
}

// Clock yields the current time. time.Now is the default.
type Clock func() time.Time

// Option configures event creation.
// Options that do not apply to the variant being built are ignored.
type Option func(*options)

type options struct {
	clock        Clock
	timestamp    time.Time
	hasTimestamp bool

	duration       Opt[time.Duration]
	samplingPeriod Opt[time.Duration]

	threadID       Opt[int64]
	threadName     Opt[string]
	threadNativeID Opt[int64]
	taskID         Opt[int64]
	taskName       Opt[string]
}

func newOptions(opts []Option) options {
	cfg := options{clock: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (o *options) now() time.Time {
	if o.hasTimestamp {
		return o.timestamp
	}
	return o.clock()
}

// WithTimestamp sets an explicit timestamp (default: the clock's current value).
func WithTimestamp(t time.Time) Option {
	return func(cfg *options) {
		cfg.timestamp = t
		cfg.hasTimestamp = true
	}
}

// WithClock replaces the clock used when no explicit timestamp is given.
func WithClock(c Clock) Option {
	return func(cfg *options) {
		if c != nil {
			cfg.clock = c
		}
	}
}

// WithDuration sets the duration of a TimedEvent.
func WithDuration(d time.Duration) Option {
	return func(cfg *options) {
		cfg.duration = Some(d)
	}
}

// WithSamplingPeriod sets the sampling period of a SampleEvent or StackBasedEvent.
func WithSamplingPeriod(p time.Duration) Option {
	return func(cfg *options) {
		cfg.samplingPeriod = Some(p)
	}
}

// WithThread identifies the sampled runtime thread.
func WithThread(id int64, name string) Option {
	return func(cfg *options) {
		cfg.threadID = Some(id)
		cfg.threadName = Some(name)
	}
}

// WithThreadNativeID sets the OS-level thread id.
func WithThreadNativeID(id int64) Option {
	return func(cfg *options) {
		cfg.threadNativeID = Some(id)
	}
}

// WithTask identifies the lightweight task running on the sampled thread.
func WithTask(id int64, name string) Option {
	return func(cfg *options) {
		cfg.taskID = Some(id)
		cfg.taskName = Some(name)
	}
}
