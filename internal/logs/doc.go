// Package logs tails the daemon log file for the CLI "logs" command.
//
// Reads use bounded memory, a negative offset means "last N lines", and
// follow mode polls for appended lines until its wait expires. Filters match
// event_type and component in both the console and JSON formats.
package logs
