package cacheinfra

import (
	"errors"
	"fmt"

	"github.com/goliatone/go-dataset-cache/cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type options struct {
	logger         *zap.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
	keySerializer  cache.KeySerializer
	strictStore    bool
	restore        bool
}

// Option configures a Provider.
type Option func(*options) error

func getOpts(opts []Option) (options, error) {
	cfg := options{
		logger:         zap.NewNop(),
		meterProvider:  otel.GetMeterProvider(),
		tracerProvider: otel.GetTracerProvider(),
		keySerializer:  cache.NewDefaultKeySerializer(),
	}
	for i, opt := range opts {
		if err := opt(&cfg); err != nil {
			return options{}, fmt.Errorf("option %d failed: %w", i, err)
		}
	}
	return cfg, nil
}

// WithLogger sets the structured logger. Default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) error {
		if logger == nil {
			return errors.New("nil logger")
		}
		o.logger = logger
		return nil
	}
}

// WithMeterProvider sets where cache metrics are reported. Default is the
// global otel meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) error {
		if mp != nil {
			o.meterProvider = mp
		}
		return nil
	}
}

// WithTracerProvider sets the tracer used for compute spans. Default is the
// global otel tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) error {
		if tp != nil {
			o.tracerProvider = tp
		}
		return nil
	}
}

// WithKeySerializer sets how stores built by NewStore name their records.
func WithKeySerializer(serializer cache.KeySerializer) Option {
	return func(o *options) error {
		if serializer == nil {
			return errors.New("nil key serializer")
		}
		o.keySerializer = serializer
		return nil
	}
}

// WithStrictStore makes store write failures fail the GetData call that
// triggered the computation.
func WithStrictStore(strict bool) Option {
	return func(o *options) error {
		o.strictStore = strict
		return nil
	}
}

// WithRestore registers records already present in the store when the
// provider starts. Without it the store is purged on start.
func WithRestore(restore bool) Option {
	return func(o *options) error {
		o.restore = restore
		return nil
	}
}
