// Package history records render runs in a SQLite database under the state
// directory.
//
// Each daily or range render inserts a running row before encoding and stamps
// it succeeded or failed afterwards. Rows still running when the daemon starts
// belong to a process that died mid-encode and are failed by
// RecoverInterrupted.
package history
