package executor

import "time"

// EntryReport is what happened to one plan entry.
type EntryReport struct {
	Name  string    `json:"name"`
	Begin time.Time `json:"begin"`
	End   time.Time `json:"end"`

	Frames        int    `json:"frames"`
	FrameFailures int    `json:"frame_failures"`
	Directory     string `json:"directory,omitempty"`

	// Skipped marks an entry whose window had already closed. No hardware
	// command was sent for it.
	Skipped bool `json:"skipped"`

	// Err is set when the entry was cut short.
	Err error `json:"-"`
}

// ErrorText returns Err as text, or "".
func (r EntryReport) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Report is the result of one Run. A report with Aborted set is partial:
// entries after the interrupted one are absent.
type Report struct {
	Entries    []EntryReport `json:"entries"`
	Aborted    bool          `json:"aborted"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
}

// Frames returns the total number of frames saved.
func (r *Report) Frames() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Entries {
		n += e.Frames
	}
	return n
}

// Completed returns the number of entries that ran to the end of their
// window without error, skipped entries excluded.
func (r *Report) Completed() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Entries {
		if !e.Skipped && e.Err == nil {
			n++
		}
	}
	return n
}
