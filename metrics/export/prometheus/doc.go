// Package prometheus exposes the flow engine's metrics snapshot in Prometheus
// text exposition format, without taking a dependency on the Prometheus client
// library. Mount Handler() wherever the deployment scrapes.
package prometheus
