// Package security summarizes an engine configuration into a posture report.
//
// It reads plain values only and never imports the root package.
package security
