// Package plan reads, writes and builds observation plans.
//
// A plan file is a sequence of blank-line separated blocks:
//
//	BEGINLOCAL 2026-10-17 21:04:10
//	ENDLOCAL 2026-10-17 21:08:40
//	NAME ISS (ZARYA)
//	0 ISS (ZARYA)
//	1 25544U 98067A   26290.51782528  .00016717  00000-0  10270-3 0  9005
//	2 25544  51.6400 208.9163 0006317  69.9862  25.2906 15.50138211 43210
//
// The "0 " title line is optional; when absent it is reconstructed from the
// NAME. Timestamps carry no zone and are read in the site's zone.
//
// Filter and Narrow implement the planning-stage window policy: greedy
// earliest-start selection with a minimum gap, then optional symmetric
// narrowing around each window's midpoint.
package plan
