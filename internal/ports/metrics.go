package ports

// MetricsCollector receives pipeline events for observability. Implemented
// by the Prometheus adapter; a nil collector is always acceptable.
//
// Thread Safety: implementations MUST be safe for concurrent calls.
type MetricsCollector interface {
	// CycleCompleted records the outcome of one capture cycle:
	// "classified", "empty", "capture_only", or "error".
	CycleCompleted(result string)

	// AlertsStored adds newly stored (non-duplicate) alert count.
	AlertsStored(count int)

	// BlacklistInsert counts a successful new blacklist insertion.
	BlacklistInsert()

	// CleanupDeleted adds the number of capture files removed by cleanup.
	CleanupDeleted(count int)
}
