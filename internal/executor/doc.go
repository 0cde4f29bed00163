// Package executor walks a plan in real time and drives the mount and
// camera through each observation window.
//
// For every entry, in order, the executor waits for the window to open,
// starts the mount following the entry's elements, then exposes and saves
// frames until the window closes. A frame that fails is counted and the
// loop carries on; a mount failure ends the entry; cancellation ends the
// run and stops the mount.
//
// Frames land in one directory per entry:
//
//	<output>/20261017_213000_ISS_(ZARYA)/0001_Azm_181.204_Alt_43.118_Axis0Dist_1.20_Axis1Dist_0.85.fits
package executor
