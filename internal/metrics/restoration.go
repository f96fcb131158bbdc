package metrics

import "time"

// RecordRestoration emits latency and an outcome count for one call to the
// restoration model. outcome is "success" or an error kind such as "transport".
func RecordRestoration(model, outcome string, elapsed time.Duration, outputBytes int) {
	New(Namespace).
		Dimension("Outcome", outcome).
		Metric("RestorationLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Metric("RestoredImageBytes", float64(outputBytes), UnitBytes).
		Count("RestorationResult").
		Property("model", model).
		Flush()
}

// RecordRequest emits per-request latency for the web API.
func RecordRequest(endpoint, method string, status int, elapsed time.Duration) {
	New(Namespace).
		Dimension("Endpoint", endpoint).
		Metric("RequestLatencyMs", float64(elapsed.Milliseconds()), UnitMilliseconds).
		Count("RequestCount").
		Property("method", method).
		Property("statusCode", status).
		Flush()
}
