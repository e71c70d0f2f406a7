// Package logging provides opt-in file-based logging with rotation for azmig.
// When the --debug flag is set, comprehensive logs are written to ~/.azmig/logs/
// for debugging and troubleshooting.
//
// By default (without --debug), log output stays off the terminal so progress
// rendering owns it; structured records still go to the log file.
package logging
