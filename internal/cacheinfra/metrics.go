package cacheinfra

import (
	"fmt"

	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "github.com/goliatone/go-dataset-cache/internal/cacheinfra"

type providerMetrics struct {
	hits            metric.Int64Counter
	misses          metric.Int64Counter
	computes        metric.Int64Counter
	computeErrors   metric.Int64Counter
	storeErrors     metric.Int64Counter
	evictions       metric.Int64Counter
	computeDuration metric.Float64Histogram
}

func setupProviderMetrics(meter metric.Meter) (providerMetrics, error) {
	hits, err := meter.Int64Counter("datasetcache/hits",
		metric.WithDescription("GetData calls served from a ready entry"))
	if err != nil {
		return providerMetrics{}, fmt.Errorf("failed to create hits metric: %w", err)
	}

	misses, err := meter.Int64Counter("datasetcache/misses",
		metric.WithDescription("GetData calls that started a computation"))
	if err != nil {
		return providerMetrics{}, fmt.Errorf("failed to create misses metric: %w", err)
	}

	computes, err := meter.Int64Counter("datasetcache/computes",
		metric.WithDescription("Computations started"))
	if err != nil {
		return providerMetrics{}, fmt.Errorf("failed to create computes metric: %w", err)
	}

	computeErrors, err := meter.Int64Counter("datasetcache/compute_errors",
		metric.WithDescription("Computations that failed or panicked"))
	if err != nil {
		return providerMetrics{}, fmt.Errorf("failed to create compute errors metric: %w", err)
	}

	storeErrors, err := meter.Int64Counter("datasetcache/store_errors",
		metric.WithDescription("Persistence failures, by operation"))
	if err != nil {
		return providerMetrics{}, fmt.Errorf("failed to create store errors metric: %w", err)
	}

	evictions, err := meter.Int64Counter("datasetcache/evictions",
		metric.WithDescription("Entries removed by clear operations"))
	if err != nil {
		return providerMetrics{}, fmt.Errorf("failed to create evictions metric: %w", err)
	}

	computeDuration, err := meter.Float64Histogram("datasetcache/compute_duration",
		metric.WithDescription("Time spent in compute functions"),
		metric.WithUnit("s"))
	if err != nil {
		return providerMetrics{}, fmt.Errorf("failed to create compute duration metric: %w", err)
	}

	return providerMetrics{
		hits:            hits,
		misses:          misses,
		computes:        computes,
		computeErrors:   computeErrors,
		storeErrors:     storeErrors,
		evictions:       evictions,
		computeDuration: computeDuration,
	}, nil
}
