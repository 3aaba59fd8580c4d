package netsim

// simulator.go holds the Simulator, which owns the logical clock and the
// time-ordered queue of pending Events.  Time advances only inside the drive
// loop, as events are popped and fired.
//
// Events that share an absolute fire time fire in the order they were scheduled.
// The queue is keyed on (fire time, insertion sequence) so that the order never
// depends on how the heap happens to break ties, which is what makes a trial
// reproducible from its seed.

import (
	"container/heap"
	"errors"
	"fmt"
	"math"

	"github.com/iti/evt/vrtime"
	"go.uber.org/zap"
)

var (
	// ErrSimulatorRunning is returned when a drive function is called while the Simulator is already running
	ErrSimulatorRunning = errors.New("cannot call a run function while already running")

	// ErrEventQueued is returned when an event that is already waiting in the queue is scheduled again
	ErrEventQueued = errors.New("event is already scheduled")

	// ErrEventFired is returned when an event whose handler has been called is scheduled again
	ErrEventFired = errors.New("event has already fired")
)

// queueItem is an entry in the simulator's priority queue
type queueItem struct {
	expiry float64 // absolute time the event fires
	seq    uint64  // insertion order, breaks ties between equal expiry
	evt    *Event
}

// eventQueue implements heap.Interface, lowest (expiry, seq) first
type eventQueue []*queueItem

func (eq eventQueue) Len() int { return len(eq) }

func (eq eventQueue) Less(i, j int) bool {
	if eq[i].expiry == eq[j].expiry {
		return eq[i].seq < eq[j].seq
	}
	return eq[i].expiry < eq[j].expiry
}

func (eq eventQueue) Swap(i, j int) { eq[i], eq[j] = eq[j], eq[i] }

func (eq *eventQueue) Push(x any) {
	*eq = append(*eq, x.(*queueItem))
}

func (eq *eventQueue) Pop() any {
	old := *eq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*eq = old[0 : n-1]
	return item
}

// Simulator is a single-threaded discrete event scheduler
type Simulator struct {
	time       float64    // current simulation time, seconds
	eventCount uint64     // number of valid events fired
	nxtEventID uint64     // id given to the next event created
	nxtSeq     uint64     // insertion sequence given to the next event scheduled
	queue      eventQueue // pending events, including invalidated ones

	// stop conditions, installed by ExecuteSteps and ExecuteDuration
	stopAfterCount *uint64
	stopAfterTime  *float64

	running bool

	logger   *zap.Logger
	traceMgr *TraceManager
	execID   int // identifies this simulator's records in traceMgr
}

// CreateSimulator is a constructor.  The clock starts at zero.
func CreateSimulator() *Simulator {
	sim := new(Simulator)
	sim.queue = make(eventQueue, 0)
	heap.Init(&sim.queue)
	sim.logger = zap.NewNop()
	return sim
}

// SetLogger sets the logger used for diagnostic output.  A nil logger silences the simulator.
func (sim *Simulator) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	sim.logger = logger
}

// SetTrace attaches a trace manager; kernel activity is recorded under execID
func (sim *Simulator) SetTrace(tm *TraceManager, execID int) {
	sim.traceMgr = tm
	sim.execID = execID
}

// Time returns the current simulation time in seconds
func (sim *Simulator) Time() float64 {
	return sim.time
}

// Now returns the current simulation time as a vrtime.Time
func (sim *Simulator) Now() vrtime.Time {
	return vrtime.SecondsToTime(sim.time)
}

// EventCount returns the number of valid events that have fired
func (sim *Simulator) EventCount() uint64 {
	return sim.eventCount
}

// Pending returns the number of events in the queue, counting invalidated ones not yet reached
func (sim *Simulator) Pending() int {
	return len(sim.queue)
}

// Running is true while a drive function is executing
func (sim *Simulator) Running() bool {
	return sim.running
}

// CreateEvent makes an Event with the next id from this simulator's sequence.
// The delay is relative to the time at which the event is scheduled.
func (sim *Simulator) CreateEvent(delay float64, handler EventHandlerFunction, data any) (*Event, error) {
	evt, err := createEvent(sim.nxtEventID, delay, handler, data)
	if err != nil {
		return nil, err
	}
	sim.nxtEventID += 1
	return evt, nil
}

// Schedule puts the event in the queue to fire at Time()+evt.Delay()
func (sim *Simulator) Schedule(evt *Event) error {
	if evt == nil {
		return fmt.Errorf("cannot schedule a nil event")
	}
	if evt.queued {
		return fmt.Errorf("%w: %v", ErrEventQueued, evt)
	}
	if evt.fired {
		return fmt.Errorf("%w: %v", ErrEventFired, evt)
	}

	item := &queueItem{expiry: sim.time + evt.delay, seq: sim.nxtSeq, evt: evt}
	sim.nxtSeq += 1
	evt.queued = true
	heap.Push(&sim.queue, item)

	sim.logger.Debug("schedule",
		zap.Float64("time", sim.time),
		zap.Float64("expiry", item.expiry),
		zap.Uint64("event", evt.id))
	sim.trace(evt.id, "schedule")
	return nil
}

// ScheduleFunc creates an event and schedules it
func (sim *Simulator) ScheduleFunc(delay float64, handler EventHandlerFunction, data any) (*Event, error) {
	evt, err := sim.CreateEvent(delay, handler, data)
	if err != nil {
		return nil, err
	}
	if err := sim.Schedule(evt); err != nil {
		return nil, err
	}
	return evt, nil
}

// Execute runs until the queue is empty
func (sim *Simulator) Execute() error {
	if sim.running {
		return ErrSimulatorRunning
	}
	sim.clearBreaks()
	return sim.execute()
}

// ExecuteSteps runs until n more valid events have fired or the queue is empty.
// Events left in the queue stay there for a later call.
func (sim *Simulator) ExecuteSteps(n int) error {
	if n < 0 {
		return fmt.Errorf("number of steps must be non-negative, got %d", n)
	}
	if sim.running {
		return ErrSimulatorRunning
	}
	sim.clearBreaks()
	stop := sim.eventCount + uint64(n)
	sim.stopAfterCount = &stop
	return sim.execute()
}

// ExecuteDuration runs the events whose fire time is no later than Time()+d.
// If events remain past that deadline the clock is advanced to the deadline.
func (sim *Simulator) ExecuteDuration(d float64) error {
	if d < 0.0 || math.IsNaN(d) {
		return fmt.Errorf("duration must be non-negative, got %v", d)
	}
	if sim.running {
		return ErrSimulatorRunning
	}
	sim.clearBreaks()
	deadline := sim.time + d
	sim.stopAfterTime = &deadline
	return sim.execute()
}

func (sim *Simulator) clearBreaks() {
	sim.stopAfterCount = nil
	sim.stopAfterTime = nil
}

// checkBreak reports whether a stop condition is met before the next pop
func (sim *Simulator) checkBreak() bool {
	if sim.stopAfterCount != nil && sim.eventCount >= *sim.stopAfterCount {
		return true
	}
	if sim.stopAfterTime != nil && sim.queue[0].expiry > *sim.stopAfterTime {
		sim.stepTime(*sim.stopAfterTime)
		return true
	}
	return false
}

// execute is the drive loop
func (sim *Simulator) execute() error {
	if sim.running {
		return ErrSimulatorRunning
	}
	sim.running = true
	defer func() {
		sim.running = false
	}()

	for len(sim.queue) > 0 {
		if sim.checkBreak() {
			break
		}

		item := heap.Pop(&sim.queue).(*queueItem)
		evt := item.evt
		evt.queued = false
		sim.stepTime(item.expiry)

		if !evt.valid {
			sim.trace(evt.id, "skip")
			continue
		}
		if err := sim.runEvent(evt); err != nil {
			sim.logger.Info("simulation aborted",
				zap.Float64("time", sim.time),
				zap.Uint64("event", evt.id),
				zap.Error(err))
			return fmt.Errorf("event %d at time %v: %w", evt.id, sim.time, err)
		}
	}

	sim.logger.Info("simulation stopping",
		zap.Float64("time", sim.time),
		zap.Int("queued", len(sim.queue)),
		zap.Uint64("executed", sim.eventCount))
	return nil
}

// stepTime moves the clock forward; it never moves backwards
func (sim *Simulator) stepTime(t float64) {
	if t > sim.time {
		sim.time = t
	}
}

func (sim *Simulator) runEvent(evt *Event) error {
	sim.logger.Debug("executing event",
		zap.Float64("time", sim.time),
		zap.Uint64("event", evt.id))
	sim.eventCount += 1
	sim.trace(evt.id, "fire")
	return evt.Fire()
}

func (sim *Simulator) trace(evtID uint64, op string) {
	if sim.traceMgr == nil || !sim.traceMgr.Active() {
		return
	}
	AddKernelTrace(sim.traceMgr, sim.Now(), sim.execID, evtID, "simulator", op)
}
