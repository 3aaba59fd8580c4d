package netsim

// layer.go holds the interchange between simulated protocol layers.  A layer
// receives Requests from the layer above it and Indications from the layer below.

import (
	"errors"
	"fmt"
)

// ErrUnsupportedSDU is returned when a layer is handed an SDU it cannot process
var ErrUnsupportedSDU = errors.New("unsupported SDU")

// SDUKind tells which direction an SDU travels
type SDUKind int

const (
	Request    SDUKind = iota // from the upper layer
	Indication                // from the lower layer
)

func (kind SDUKind) String() string {
	switch kind {
	case Request:
		return "request"
	case Indication:
		return "indication"
	}
	return fmt.Sprintf("SDUKind(%d)", int(kind))
}

// SDU is a service data unit passed across a layer boundary
type SDU struct {
	Kind SDUKind
	Peer Receiver // where a Request is ultimately headed
	Msg  *Message
}

// Layer is implemented by every simulated protocol layer
type Layer interface {
	ReceiveRequest(sdu *SDU) error
	ReceiveIndication(sdu *SDU) error
}

// DeliverSDU hands sdu to the layer method that matches its kind
func DeliverSDU(layer Layer, sdu *SDU) error {
	if sdu == nil {
		return fmt.Errorf("%w: nil", ErrUnsupportedSDU)
	}
	switch sdu.Kind {
	case Request:
		return layer.ReceiveRequest(sdu)
	case Indication:
		return layer.ReceiveIndication(sdu)
	}
	return fmt.Errorf("%w: %v", ErrUnsupportedSDU, sdu.Kind)
}
