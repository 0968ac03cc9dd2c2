// Package capture runs the frame capture loop and the day-boundary trigger
// that decides when closed days are rendered.
//
// Capture and rendering share one goroutine: a day change renders inline and
// capture resumes afterwards. A failed grab is logged and the interval skipped.
package capture
