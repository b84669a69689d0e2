// Unless explicitly stated otherwise all files in this repository are licensed
// under the Apache License Version 2.0.
// This product includes software developed at Datadog (https://www.datadoghq.com/).
// Copyright 2016 Datadog, Inc.

// Package grpc provides server interceptors profiling the calls served by
// the google.golang.org/grpc package.
package grpc // import "github.com/vmprof/vmprof-go/contrib/google.golang.org/grpc"

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vmprof/vmprof-go/internal/log"
	"github.com/vmprof/vmprof-go/profiler"
)

// call profiles fn with m. A profiler that cannot be started fails the call
// with codes.Internal. Errors processing the profile are logged and never
// change the outcome of the call.
func call(ctx context.Context, m *profiler.Middleware, method string, fn func(context.Context) error) error {
	var (
		served     bool
		handlerErr error
	)
	err := m.Call(ctx, func(ctx context.Context) error {
		served = true
		handlerErr = fn(ctx)
		return nil
	})
	if !served {
		log.Error("Could not profile %s: %v", method, err)
		return status.Errorf(codes.Internal, "profiler could not be started: %v", err)
	}
	if err != nil {
		log.Error("Profile of %s could not be processed: %v", method, err)
	}
	return handlerErr
}

// UnaryServerInterceptor will profile requests to the given grpc server.
func UnaryServerInterceptor(m *profiler.Middleware, opts ...Option) grpc.UnaryServerInterceptor {
	cfg := newConfig(opts)
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if !cfg.profiled(info.FullMethod) {
			return handler(ctx, req)
		}
		var resp interface{}
		err := call(ctx, m, info.FullMethod, func(ctx context.Context) error {
			var err error
			resp, err = handler(ctx, req)
			return err
		})
		return resp, err
	}
}

// StreamServerInterceptor will profile streaming requests to the given grpc
// server. The whole stream is profiled as a single call.
func StreamServerInterceptor(m *profiler.Middleware, opts ...Option) grpc.StreamServerInterceptor {
	cfg := newConfig(opts)
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !cfg.streamCalls || !cfg.profiled(info.FullMethod) {
			return handler(srv, ss)
		}
		return call(ss.Context(), m, info.FullMethod, func(ctx context.Context) error {
			return handler(srv, &serverStream{ServerStream: ss, ctx: ctx})
		})
	}
}

// serverStream replaces the context of a grpc.ServerStream.
type serverStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (ss *serverStream) Context() context.Context {
	return ss.ctx
}
