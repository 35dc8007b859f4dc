package cascade

// Status texts sent through Reporter.Status.
const (
	StatusRunning   = "Running cascading failure..."
	StatusDone      = "Done!"
	StatusCancelled = "Cancelled"
)

// Reporter receives progress and status notifications. Calls come from the
// goroutine driving the controller and from whichever goroutine calls Cancel,
// so implementations must be safe for concurrent use and must not block.
type Reporter interface {
	// Progress reports completion as a percentage in [0, 100].
	Progress(percent float64)
	// Status reports a human-readable state change.
	Status(text string)
	// Done marks the end of a run or step.
	Done()
}

// Notification is one message emitted by ChanReporter.
type Notification struct {
	Percent float64
	Text    string
	Done    bool
}

// ChanReporter forwards notifications to a buffered channel without blocking.
// When the channel is full a progress update is dropped, while a status or the
// Done marker evicts the oldest queued notification to make room. With a
// buffer of at least two, the final status and Done always reach the reader.
// An unbuffered channel only receives what a waiting reader takes.
type ChanReporter chan Notification

func (c ChanReporter) Progress(percent float64) { c.offer(Notification{Percent: percent}) }
func (c ChanReporter) Status(text string)       { c.force(Notification{Text: text}) }
func (c ChanReporter) Done()                    { c.force(Notification{Done: true}) }

func (c ChanReporter) offer(n Notification) bool {
	select {
	case c <- n:
		return true
	default:
		return false
	}
}

func (c ChanReporter) force(n Notification) {
	if cap(c) == 0 {
		c.offer(n)
		return
	}
	for !c.offer(n) {
		select {
		case <-c:
		default:
		}
	}
}

// ReporterFuncs adapts plain functions to Reporter. Nil fields are skipped.
type ReporterFuncs struct {
	OnProgress func(percent float64)
	OnStatus   func(text string)
	OnDone     func()
}

func (r ReporterFuncs) Progress(percent float64) {
	if r.OnProgress != nil {
		r.OnProgress(percent)
	}
}

func (r ReporterFuncs) Status(text string) {
	if r.OnStatus != nil {
		r.OnStatus(text)
	}
}

func (r ReporterFuncs) Done() {
	if r.OnDone != nil {
		r.OnDone()
	}
}

type nopReporter struct{}

func (nopReporter) Progress(float64) {}
func (nopReporter) Status(string)    {}
func (nopReporter) Done()            {}
