// Package events defines the progress notifications emitted while a suite
// runs and the reporters that deliver them.
//
// A run emits, in order:
//
//	suite_start
//	step_prepare, step_start, [step_progress...], [step_error], step_complete   (per attempted step)
//	suite_complete | suite_stopped | suite_error
//
// A suite that cannot start (for example one without steps) emits only
// suite_error.
//
// Reporting is fire-and-forget. The runner calls Report synchronously, so
// sinks that do I/O (websocket clients, remote collectors) should be wrapped
// in an Async reporter, which queues without blocking and drops events when
// the consumer falls behind.
package events
