// Package jobs implements the generic progress-tracked job processor used by
// long-running pipelines such as composite-image generation.
//
// A job moves processing → completed|failed. Coverage is monotonically
// non-decreasing until a terminal state and always within [0,100]; terminal
// states accept no further advances. Each simulated pipeline runs as its own
// cancellable goroutine.
package jobs
