package ui

import "io"

// Surface abstracts the chart display so alternative console renderers
// can plug in. Implementations must be safe for concurrent calls from
// the message and stats loops.
//
// Done unblocks when the surface has shut itself down (for example the
// user pressed q in the terminal dashboard) so the consumer can stop
// reading and finish cleanly. FinalFrame is only meaningful after Stop;
// it returns the last chart as plain text for the static end-of-run
// display.
type Surface interface {
	WaitReady()
	Stop()
	Done() <-chan struct{}
	SetStats(lines []string)
	SetChart(snapshot Snapshot)
	AppendAccepted(line string)
	AppendRejected(line string)
	AppendSystem(line string)
	SystemWriter() io.Writer
	FinalFrame() string
}
