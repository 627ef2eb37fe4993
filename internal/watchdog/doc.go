// Package watchdog monitors the supervisor's heartbeat through the process
// registry and triggers restarts when it goes stale.
//
// The watchdog is fail-stop by design: after exhausting its restart
// attempts it disables itself permanently rather than risk a restart
// storm, and must be re-created to resume.
package watchdog
