package journal

import "time"

// Cycle is one journaled day-cycle invocation.
type Cycle struct {
	ID         string     `json:"id"`
	SiteID     string     `json:"site_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	State      string     `json:"state"`
	Reason     string     `json:"reason,omitempty"`
	Frames     int        `json:"frames"`

	ShutterClosed    bool `json:"shutter_closed"`
	ShutdownFailures int  `json:"shutdown_failures"`

	// Transitions and Entries are only loaded by Get.
	Transitions []TransitionRecord `json:"transitions,omitempty"`
	Entries     []EntryRun         `json:"entries,omitempty"`
}

// TransitionRecord is one stored state change.
type TransitionRecord struct {
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// EntryRun is the stored result of one plan entry.
type EntryRun struct {
	Name          string    `json:"name"`
	Begin         time.Time `json:"begin"`
	End           time.Time `json:"end"`
	Frames        int       `json:"frames"`
	FrameFailures int       `json:"frame_failures"`
	Directory     string    `json:"directory,omitempty"`
	Skipped       bool      `json:"skipped"`
	Error         string    `json:"error,omitempty"`
}

// ListResult contains a page of cycles, most recent first.
type ListResult struct {
	Cycles []Cycle `json:"cycles"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}
