package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncTransformCount increments the transform request counter.
	IncTransformCount(source, target string, success bool)

	// ObserveTransformDuration records the duration of a transform request.
	ObserveTransformDuration(source, target string, duration time.Duration)

	// AddPoints adds to the transformed and failed point counters.
	AddPoints(transformed, failed int)

	// IncChainBuilds increments the counter of built transformation chains.
	IncChainBuilds(source, target string)

	// IncChainCache counts chain cache lookups.
	IncChainCache(hit bool)

	// SetCRSRegistered sets the number of registered CRS.
	SetCRSRegistered(count int)

	// IncBatchFiles increments the processed batch file counter.
	IncBatchFiles(success bool)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncTransformCount implements MetricsCollector.
func (n *NoOpMetrics) IncTransformCount(_, _ string, _ bool) {}

// ObserveTransformDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveTransformDuration(_, _ string, _ time.Duration) {}

// AddPoints implements MetricsCollector.
func (n *NoOpMetrics) AddPoints(_, _ int) {}

// IncChainBuilds implements MetricsCollector.
func (n *NoOpMetrics) IncChainBuilds(_, _ string) {}

// IncChainCache implements MetricsCollector.
func (n *NoOpMetrics) IncChainCache(_ bool) {}

// SetCRSRegistered implements MetricsCollector.
func (n *NoOpMetrics) SetCRSRegistered(_ int) {}

// IncBatchFiles implements MetricsCollector.
func (n *NoOpMetrics) IncBatchFiles(_ bool) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
