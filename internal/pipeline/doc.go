// Package pipeline runs an ordered list of modules.
//
// One attempt constructs each module in command-line order and drives it
// through its lifecycle up to execution. An attempt that ends with a
// retryable error is thrown away and the whole pipeline starts over from
// the first module, up to the configured number of retries. Whatever the
// outcome, every constructed module is destroyed exactly once, in reverse
// construction order, and learns how the pipeline ended.
package pipeline
