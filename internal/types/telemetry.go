package types

// Telemetry metric names for CloudWatch.
const (
	// Metric Names
	MetricDeliveryAttempt = "DeliveryAttempt"
	MetricDeliveryLatency = "DeliveryAttemptLatency"
	MetricDispatchLag     = "DispatchQueueLag"
	MetricCycleLocations  = "CycleLocationsChecked"
	MetricCycleAlerts     = "CycleAlertsFired"
	MetricCycleFailures   = "CycleLocationFailures"
	MetricWeatherFallback = "WeatherFallback"
	MetricAPILatency      = "APILatency"
	MetricAPIRequestCount = "APIRequestCount"

	// Dimension Keys
	DimChannel  = "Channel"
	DimResult   = "Result"
	DimCycle    = "Cycle"
	DimEndpoint = "Endpoint"
	DimMethod   = "Method"
	DimStatus   = "Status"

	// Metric Namespace
	MetricNamespace = "TempGuard"
)
