package netsim

// channel.go models a node's output queue.  Messages leave in FIFO order, each
// after a delay drawn from a DelayGenerator, and each is dropped or delivered
// according to a LossGenerator sampled when its delay expires.  At most one timer
// is outstanding, the one for the head-of-line message.
//
//	Idle     --Send-->        Draining (timer installed for the new head)
//	Draining --Send-->        Draining (message appended, no new timer)
//	Draining --timer, empty-> Idle
//	Draining --timer-->       Draining (fresh delay for the next head)
//	any      --Clear-->       Idle

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrChannelStarved is returned when a channel's timer fires with nothing in its queue,
	// which means the channel's queue and timer bookkeeping disagree
	ErrChannelStarved = errors.New("queue timer fired with zero messages in queue")
)

// Receiver is the entry point through which a message is delivered to a peer
type Receiver interface {
	Receive(msg *Message) error
}

// ReceiverFunc lets an ordinary function serve as a Receiver
type ReceiverFunc func(msg *Message) error

func (rf ReceiverFunc) Receive(msg *Message) error {
	return rf(msg)
}

// chnlEntry is a message waiting in a channel, with the peer it is headed to
type chnlEntry struct {
	dst     Receiver
	msg     *Message
	arrival float64 // time the message joined the queue
}

// ChannelStats counts what a channel has done with the messages given to it
type ChannelStats struct {
	Sent      int // accepted by Send
	Delivered int // handed to the destination
	Dropped   int // lost by the loss process
	Cleared   int // discarded by Clear
}

// Channel is a FIFO link with a random delay and random loss
type Channel struct {
	name    string
	sim     *Simulator
	delay   DelayGenerator
	loss    LossGenerator
	queue   []*chnlEntry
	pending *Event // the timer for the head-of-line message, nil when idle
	stats   ChannelStats
	logger  *zap.Logger
}

// CreateChannel is a constructor
func CreateChannel(sim *Simulator, name string, delay DelayGenerator, loss LossGenerator) (*Channel, error) {
	if sim == nil {
		return nil, fmt.Errorf("channel %s needs a simulator", name)
	}
	if delay == nil {
		return nil, fmt.Errorf("channel %s needs a delay generator", name)
	}
	if loss == nil {
		return nil, fmt.Errorf("channel %s needs a loss generator", name)
	}
	chnl := new(Channel)
	chnl.name = name
	chnl.sim = sim
	chnl.delay = delay
	chnl.loss = loss
	chnl.queue = make([]*chnlEntry, 0)
	chnl.logger = zap.NewNop()
	return chnl, nil
}

// SetLogger sets the logger used for diagnostic output
func (chnl *Channel) SetLogger(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	chnl.logger = logger.With(zap.String("channel", chnl.name))
}

// Name returns the channel's name
func (chnl *Channel) Name() string {
	return chnl.name
}

// Len returns the number of messages waiting, including the head-of-line message
func (chnl *Channel) Len() int {
	return len(chnl.queue)
}

// Busy is true when a timer is outstanding
func (chnl *Channel) Busy() bool {
	return chnl.pending != nil
}

// Stats returns the channel's counters
func (chnl *Channel) Stats() ChannelStats {
	return chnl.stats
}

// Send queues msg for delivery to dst.  The message's fate is decided when its timer fires.
func (chnl *Channel) Send(dst Receiver, msg *Message) error {
	if dst == nil {
		return fmt.Errorf("channel %s: destination cannot be nil", chnl.name)
	}
	if msg == nil {
		return fmt.Errorf("channel %s: message cannot be nil", chnl.name)
	}

	chnl.queue = append(chnl.queue, &chnlEntry{dst: dst, msg: msg, arrival: chnl.sim.Time()})

	// no timer outstanding, start one for the head of line.  Messages left
	// behind by a failed timer restart are picked up here too.
	if chnl.pending == nil {
		if err := chnl.setTimer(); err != nil {
			chnl.queue[len(chnl.queue)-1] = nil
			chnl.queue = chnl.queue[:len(chnl.queue)-1]
			return err
		}
	}
	chnl.stats.Sent += 1
	chnl.trace(msg.ID(), "enqueue")
	return nil
}

// Clear drops every queued message and cancels the outstanding timer, returning the
// channel to idle.  It models the reset of the sending node.
func (chnl *Channel) Clear() {
	chnl.stats.Cleared += len(chnl.queue)
	for idx := range chnl.queue {
		chnl.queue[idx] = nil
	}
	chnl.queue = chnl.queue[:0]
	if chnl.pending != nil {
		chnl.pending.Invalidate()
		chnl.pending = nil
	}
	chnl.logger.Debug("channel cleared", zap.Float64("time", chnl.sim.Time()))
}

func (chnl *Channel) setTimer() error {
	delay := chnl.delay.Next()
	evt, err := chnl.sim.CreateEvent(delay, chnl.queueTimer, nil)
	if err != nil {
		return fmt.Errorf("channel %s: %w", chnl.name, err)
	}
	if err := chnl.sim.Schedule(evt); err != nil {
		return fmt.Errorf("channel %s: %w", chnl.name, err)
	}
	chnl.pending = evt
	chnl.logger.Debug("start timer",
		zap.Float64("time", chnl.sim.Time()),
		zap.Float64("delay", delay))
	return nil
}

// queueTimer is the handler of the head-of-line timer
func (chnl *Channel) queueTimer(evt *Event) error {
	if len(chnl.queue) == 0 {
		return fmt.Errorf("channel %s: %w", chnl.name, ErrChannelStarved)
	}
	chnl.pending = nil

	var head *chnlEntry
	head, chnl.queue = chnl.queue[0], chnl.queue[1:]

	// restart the timer before delivery, so that a receiver which sends on this
	// channel finds it busy and its message joins the tail.  The head is delivered
	// even when the restart fails; the rest wait for the next Send.
	var timerErr error
	if len(chnl.queue) > 0 {
		timerErr = chnl.setTimer()
	}
	if err := chnl.sendWithLoss(head); err != nil {
		return errors.Join(timerErr, err)
	}
	return timerErr
}

func (chnl *Channel) sendWithLoss(entry *chnlEntry) error {
	if chnl.loss.Next() {
		chnl.stats.Dropped += 1
		chnl.trace(entry.msg.ID(), "drop")
		chnl.logger.Debug("message dropped",
			zap.Float64("time", chnl.sim.Time()),
			zap.Uint64("msg", entry.msg.ID()))
		return nil
	}
	chnl.stats.Delivered += 1
	chnl.trace(entry.msg.ID(), "deliver")
	chnl.logger.Debug("message delivered",
		zap.Float64("time", chnl.sim.Time()),
		zap.Float64("sojourn", chnl.sim.Time()-entry.arrival),
		zap.Uint64("msg", entry.msg.ID()))
	return entry.dst.Receive(entry.msg)
}

// ReceiveRequest accepts a Request SDU from the layer above and sends its message to sdu.Peer
func (chnl *Channel) ReceiveRequest(sdu *SDU) error {
	return chnl.Send(sdu.Peer, sdu.Msg)
}

// ReceiveIndication is not supported; the channel is the bottom of the stack
func (chnl *Channel) ReceiveIndication(sdu *SDU) error {
	return fmt.Errorf("channel %s: %w: indication", chnl.name, ErrUnsupportedSDU)
}

func (chnl *Channel) trace(msgID uint64, op string) {
	tm := chnl.sim.traceMgr
	if tm == nil || !tm.Active() {
		return
	}
	AddKernelTrace(tm, chnl.sim.Now(), chnl.sim.execID, msgID, "channel:"+chnl.name, op)
}
