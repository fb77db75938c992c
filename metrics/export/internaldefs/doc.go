// Package internaldefs holds the shared metric name and bucket tables used
// by the Prometheus and OpenTelemetry exporters.
package internaldefs
