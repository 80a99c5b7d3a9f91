// Package ui renders progress for idrac-power on stderr.
//
// # Components
//
//	Spinner          - single-target reading in flight
//	TargetProgress   - per-target rows for multi-target runs (parallel.Events)
//	MonitorProgress  - monitoring notices, one monitor.Reporter per target
//	Confirm          - huh yes/no prompt used after an interrupted run
//
// # Output modes
//
// Live rendering (cursor movement, animation) is only used when stderr is a
// terminal. Otherwise every component falls back to one plain line per
// event so logs and pipes stay readable. DisableColors switches lipgloss to
// the ASCII profile.
//
// # Symbols
//
//	SymbolSuccess  (checkmark)  - target succeeded
//	SymbolFail     (X)          - target failed
//	SymbolPending  (circle)     - target not yet started
//	SymbolComplete (filled)     - step done
//	SymbolWarning  (triangle)   - non-fatal notice
package ui
