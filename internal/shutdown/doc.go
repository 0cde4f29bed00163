// Package shutdown puts the observatory into its safe state: mount axes
// disabled, shutter closed, camera cooler off.
//
// Sequencer.Shutdown is the last thing run before the process exits and is
// also called from failure paths, so it never fails from the caller's point
// of view. Each step is guarded on its own; a failing or panicking step is
// logged and the next step still runs.
package shutdown
