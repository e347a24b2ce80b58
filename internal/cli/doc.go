// Package cli is responsible for parsing command-line arguments, validating
// user input, and handling process-level concerns like exit codes. It
// translates global flags into the application's configuration and splits
// the rest of the command line into pipeline steps.
package cli
