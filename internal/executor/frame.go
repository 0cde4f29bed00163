package executor

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/nerrad567/nightwatch/internal/observatory"
)

// dirTimeLayout prefixes each entry directory.
const dirTimeLayout = "20060102_150405"

// Frame describes one saved image.
type Frame struct {
	Target    string                `json:"target"`
	Sequence  int                   `json:"sequence"`
	Path      string                `json:"path"`
	Telemetry observatory.Telemetry `json:"telemetry"`
	SavedAt   time.Time             `json:"saved_at"`
}

// FrameName builds the file name for frame seq from the mount telemetry
// read just before saving.
func FrameName(seq int, t observatory.Telemetry) string {
	return fmt.Sprintf("%04d_Azm_%.3f_Alt_%.3f_Axis0Dist_%.2f_Axis1Dist_%.2f.fits",
		seq,
		t.Azimuth,
		t.Altitude,
		t.AxisErrorArcsec[observatory.Axis0],
		t.AxisErrorArcsec[observatory.Axis1],
	)
}

// DirName builds the per-entry directory name.
func DirName(at time.Time, target string) string {
	return at.Format(dirTimeLayout) + "_" + sanitize(target)
}

// sanitize keeps a target name usable as a single path element.
func sanitize(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "unnamed"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return r
		case r == '-', r == '_', r == '.', r == '(', r == ')':
			return r
		default:
			return '_'
		}
	}, name)
}
