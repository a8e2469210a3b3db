package service

import "time"

// Option configures a service
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock replaces the wall clock used for every timestamp a service writes
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func newOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
