package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess  = "✓" // Target completed successfully
	SymbolFail     = "✗" // Target failed
	SymbolPending  = "○" // Target not yet started
	SymbolComplete = "●" // Step done
	SymbolWarning  = "⚠"
)
