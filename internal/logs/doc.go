// Package logs reads the daemon log for `reelsmith logs`.
//
// Stream prints the last lines of the current log and can keep following it.
// The daemon writes a fresh log file per run behind a stable reelsmith.log
// symlink, so followers reopen the file whenever the link is repointed.
package logs
