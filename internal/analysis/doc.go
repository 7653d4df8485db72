// Package analysis summarizes recorded body-rate series: spread, peak and
// the dominant oscillation frequency, the usual symptom of an over-tuned
// rate loop.
package analysis
