// Package logx provides the process-wide structured logger.
//
// It wraps zerolog behind a small Field-based API so call sites stay
// stable while the Service swaps sinks (console, JSON file, rate-limited
// alert sender) at runtime.
package logx
