// Package viz renders bridge telemetry in the terminal.
//
// [RenderState] and [PlotRates] format States and rate series for one-shot
// output. [Dashboard] is a Bubble Tea program that flies a bridge from the
// keyboard through a rate controller:
//
//	w/s     - Throttle up/down
//	arrows  - Roll and pitch rate
//	a/d     - Yaw rate
//	c       - Center the rate demands
//	space   - Pause/Resume stepping
//	r       - Reset the episode
//	q       - Quit
package viz
