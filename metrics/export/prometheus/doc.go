// Package prometheus exposes authcore engine metrics as a
// prometheus.Collector. Values are read from an engine snapshot at scrape
// time; nothing is registered globally unless the caller asks for it.
package prometheus
