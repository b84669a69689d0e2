// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

package grpc

// Option describes options for the gRPC integration.
type Option interface {
	apply(*config)
}

// OptionFn represents options applicable to the server interceptors.
type OptionFn func(*config)

func (fn OptionFn) apply(cfg *config) {
	fn(cfg)
}

type config struct {
	streamCalls       bool
	unprofiledMethods map[string]struct{}
}

func defaults(cfg *config) {
	cfg.streamCalls = true
	cfg.unprofiledMethods = map[string]struct{}{}
}

func newConfig(opts []Option) *config {
	cfg := new(config)
	defaults(cfg)
	for _, fn := range opts {
		fn.apply(cfg)
	}
	return cfg
}

func (cfg *config) profiled(method string) bool {
	_, ok := cfg.unprofiledMethods[method]
	return !ok
}

// WithStreamCalls enables or disables profiling of streaming calls.
func WithStreamCalls(enabled bool) OptionFn {
	return func(cfg *config) {
		cfg.streamCalls = enabled
	}
}

// WithUnprofiledMethods specifies full methods, e.g.
// "/grpc.health.v1.Health/Check", that are served without being profiled.
func WithUnprofiledMethods(ms ...string) OptionFn {
	return func(cfg *config) {
		for _, m := range ms {
			cfg.unprofiledMethods[m] = struct{}{}
		}
	}
}
