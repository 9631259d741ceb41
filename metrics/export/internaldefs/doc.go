// Package internaldefs holds the shared metric name/help definitions consumed
// by the exporter packages. It exists so the Prometheus and OTel exporters
// emit identical names without depending on each other.
package internaldefs
