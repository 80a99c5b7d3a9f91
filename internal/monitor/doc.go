// Package monitor implements the time-boxed power sampling engine.
//
// # Key Components
//
//	Collector - One polling cycle: fetch, retry with exponential backoff, stamp a Sample
//	Loop      - Drives the Collector at a fixed interval until a wall-clock deadline
//	Aggregate - Reduces a sample series to system and per-PSU min/avg/max
//	Reporter  - Receives retry, failure, and progress notices
//
// # Lifecycle
//
// A Loop starts Idle and moves to Running when Run is called. It ends in one
// of three states:
//
//	Completed   - the deadline passed with at least one sample
//	Interrupted - the context was cancelled with at least one sample
//	Failed      - no sample was collected, or the parameters were invalid
//
// Only Completed and Interrupted series may be aggregated. Interrupts are
// delivered through context cancellation; the loop never installs signal
// handlers itself.
//
// # Aggregation
//
// Numeric fields use min/avg/max accumulators over the samples where the
// field is present. A field absent from every sample stays nil in the report.
// Averages of watt readings are truncated toward zero; PSU efficiency is
// rounded to one decimal place. PSU state, health, and capacity are
// categorical and take the value from the most recent sample that listed the
// PSU.
package monitor
