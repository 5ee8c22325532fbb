package tui

import "time"

const (
	// Timeouts and Intervals
	TickInterval = 200 * time.Millisecond

	// Layout Offsets and Padding
	ProgressBarWidthOffset = 4
	DefaultPaddingX        = 1
	DefaultPaddingY        = 0
	DefaultWidth           = 80
	MaxLogLines            = 6

	// Segment map rows
	MapMinRows = 2
	MapMaxRows = 5
)
