package netsim

// message.go holds the Message, a payload carried through simulated protocol layers.
//
// A Message has a payload and a stack of headers.  The length (in octets) of the
// payload is either the actual length of the payload or a virtual length given
// when the message is created, which lets a model send large messages without
// allocating them.  Headers are themselves Messages, so they may have virtual
// lengths too; a header with virtual length 0 does not count against the wire
// length and carries only metadata.
//
// The header stack is last-in first-out: the most recently pushed header belongs
// to the layer closest to the wire and is the first one popped.

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// MessageFactory hands out message ids.  Each trial uses its own factory so that
// ids, like everything else in a trial, depend only on the trial.
type MessageFactory struct {
	nxtID uint64
}

// CreateMessageFactory is a constructor
func CreateMessageFactory() *MessageFactory {
	return new(MessageFactory)
}

// Message is a layered protocol data unit
type Message struct {
	id         uint64
	payload    []byte
	payloadLen int
	headers    []*Message // headers[len-1] is the top of the stack
}

// CreateMessage makes a message with the next id.  If virtualLen is non-negative it
// is taken as the payload length, otherwise the actual length of payload is used.
// headers, if any, are placed on the stack in the order given, so the last one is on top.
func (mf *MessageFactory) CreateMessage(payload []byte, virtualLen int, headers ...*Message) *Message {
	msg := new(Message)
	msg.id = mf.nxtID
	mf.nxtID += 1

	msg.payload = payload
	msg.payloadLen = len(payload)
	if virtualLen >= 0 {
		msg.payloadLen = virtualLen
	}
	msg.headers = make([]*Message, 0, len(headers))
	for _, hdr := range headers {
		if hdr != nil {
			msg.headers = append(msg.headers, hdr)
		}
	}
	return msg
}

// ID returns the message's identifier
func (msg *Message) ID() uint64 {
	return msg.id
}

// Payload returns the payload, which may be nil
func (msg *Message) Payload() []byte {
	return msg.payload
}

// PayloadLength returns the defined length of the payload.  It may match the
// actual payload length or be a virtual length, longer or shorter than the payload.
func (msg *Message) PayloadLength() int {
	return msg.payloadLen
}

// MessageLength returns the total length of the message, the payload length plus the
// message length of every header.  The lengths may be virtual.
func (msg *Message) MessageLength() int {
	total := msg.payloadLen
	for _, hdr := range msg.headers {
		total += hdr.MessageLength()
	}
	return total
}

// NumHeaders returns the depth of the header stack
func (msg *Message) NumHeaders() int {
	return len(msg.headers)
}

// Headers returns a copy of the header stack, bottom first
func (msg *Message) Headers() []*Message {
	return slices.Clone(msg.headers)
}

// PushHeader puts a header on top of the stack.  Headers form a tree: a push that
// would make msg a header of itself, directly or through hdr's own headers, is ignored.
func (msg *Message) PushHeader(hdr *Message) {
	if hdr == nil || hdr.contains(msg) {
		return
	}
	msg.headers = append(msg.headers, hdr)
}

// contains is true if target is msg or appears anywhere in msg's header tree
func (msg *Message) contains(target *Message) bool {
	if msg == target {
		return true
	}
	for _, hdr := range msg.headers {
		if hdr.contains(target) {
			return true
		}
	}
	return false
}

// PopHeader removes and returns the last header pushed, or nil if there are none
func (msg *Message) PopHeader() *Message {
	n := len(msg.headers)
	if n == 0 {
		return nil
	}
	hdr := msg.headers[n-1]
	msg.headers[n-1] = nil
	msg.headers = msg.headers[:n-1]
	return hdr
}

// PeekHeader returns the top of stack header without removing it, or nil if there are none
func (msg *Message) PeekHeader() *Message {
	n := len(msg.headers)
	if n == 0 {
		return nil
	}
	return msg.headers[n-1]
}

// Equal is true if both messages have the same payload, payload length and header stack,
// with headers compared in order by the same rule.  Message ids are not compared.
func (msg *Message) Equal(other *Message) bool {
	if msg == nil || other == nil {
		return msg == other
	}
	if msg.payloadLen != other.payloadLen || !bytes.Equal(msg.payload, other.payload) {
		return false
	}
	if (msg.payload == nil) != (other.payload == nil) {
		return false
	}
	return slices.EqualFunc(msg.headers, other.headers, func(a, b *Message) bool {
		return a.Equal(b)
	})
}

func (msg *Message) String() string {
	hdrs := make([]string, 0, len(msg.headers))
	for _, hdr := range msg.headers {
		hdrs = append(hdrs, hdr.String())
	}
	return fmt.Sprintf("{Message: id %d mlen %d plen %d hdrs [%s] payload %q}",
		msg.id, msg.MessageLength(), msg.payloadLen, strings.Join(hdrs, " "), msg.payload)
}
