// Package logging provides leveled logging for the media curator.
//
// The log level is configured through the LOG_LEVEL environment variable
// (debug, info, warn, error) or by setting DEBUG=true. Output goes through
// the standard library logger so timestamps and destinations follow the
// process-wide configuration.
package logging
