// Package journal persists the history of day cycles in SQLite: every state
// transition, the final outcome and what happened to each plan entry.
//
// Sink adapts a Repository to daycycle.EventSink so the controller can
// journal without knowing about storage. Journal writes never affect the
// cycle; failures are logged and dropped.
package journal
