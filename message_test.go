package netsim

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

const (
	bodyText   = "All good things must come to an end"
	headerText = "Some more quickly than others"
)

func TestEmptyMessage(t *testing.T) {
	mf := CreateMessageFactory()
	msg := mf.CreateMessage(nil, -1)
	require.NotNil(t, msg)
	assert.Nil(t, msg.Payload())
	assert.Equal(t, 0, msg.PayloadLength())
	assert.Equal(t, 0, msg.MessageLength())
	assert.Equal(t, 0, msg.NumHeaders())
}

func TestPayloadOnly(t *testing.T) {
	mf := CreateMessageFactory()
	msg := mf.CreateMessage([]byte(bodyText), -1)
	assert.Equal(t, []byte(bodyText), msg.Payload())
	assert.Equal(t, len(bodyText), msg.PayloadLength())
	assert.Equal(t, len(bodyText), msg.MessageLength())
}

func TestPayloadVirtualLength(t *testing.T) {
	mf := CreateMessageFactory()
	msg := mf.CreateMessage([]byte(bodyText), 257)
	assert.Equal(t, []byte(bodyText), msg.Payload())
	assert.Equal(t, 257, msg.PayloadLength())
	assert.Equal(t, 257, msg.MessageLength())
}

func TestPayloadAndPushedHeader(t *testing.T) {
	mf := CreateMessageFactory()
	hdr := mf.CreateMessage([]byte(headerText), -1)
	msg := mf.CreateMessage([]byte(bodyText), -1)
	msg.PushHeader(hdr)
	assert.Equal(t, []byte(bodyText), msg.Payload())
	assert.Equal(t, len(bodyText)+len(headerText), msg.MessageLength())
}

func TestPayloadAndInitialHeaders(t *testing.T) {
	mf := CreateMessageFactory()
	hdr := mf.CreateMessage([]byte(headerText), -1)
	msg := mf.CreateMessage([]byte(bodyText), -1, hdr, hdr)
	assert.Equal(t, 2, msg.NumHeaders())
	assert.Equal(t, len(bodyText)+2*len(headerText), msg.MessageLength())
}

func TestVirtualHeaderLengths(t *testing.T) {
	mf := CreateMessageFactory()
	hdr := mf.CreateMessage([]byte(headerText), 10)
	msg := mf.CreateMessage([]byte(bodyText), 20)
	msg.PushHeader(hdr)
	assert.Equal(t, 30, msg.MessageLength())

	// a zero-length header carries metadata only
	msg.PushHeader(mf.CreateMessage([]byte("route"), 0))
	assert.Equal(t, 30, msg.MessageLength())
}

func TestNestedHeaders(t *testing.T) {
	mf := CreateMessageFactory()
	inner := mf.CreateMessage(nil, 4)
	outer := mf.CreateMessage(nil, 8, inner)
	msg := mf.CreateMessage(nil, 16, outer)
	assert.Equal(t, 28, msg.MessageLength())
}

func TestHeaderStackIsLIFO(t *testing.T) {
	mf := CreateMessageFactory()
	first := mf.CreateMessage([]byte("mac"), -1)
	second := mf.CreateMessage([]byte("net"), -1)
	third := mf.CreateMessage([]byte("transport"), -1)
	msg := mf.CreateMessage([]byte(bodyText), -1, first, second)
	msg.PushHeader(third)

	assert.Same(t, third, msg.PeekHeader())
	assert.Equal(t, 3, msg.NumHeaders())
	assert.Same(t, third, msg.PopHeader())
	assert.Same(t, second, msg.PopHeader())
	assert.Same(t, first, msg.PeekHeader())
	assert.Same(t, first, msg.PopHeader())
	assert.Nil(t, msg.PopHeader())
	assert.Nil(t, msg.PeekHeader())
	assert.Equal(t, len(bodyText), msg.MessageLength())
}

func TestPushHeaderIgnoresNilAndSelf(t *testing.T) {
	mf := CreateMessageFactory()
	msg := mf.CreateMessage([]byte(bodyText), -1, nil)
	msg.PushHeader(nil)
	msg.PushHeader(msg)
	assert.Equal(t, 0, msg.NumHeaders())
}

func TestPushHeaderIgnoresCycles(t *testing.T) {
	mf := CreateMessageFactory()
	a := mf.CreateMessage([]byte("a"), -1)
	b := mf.CreateMessage([]byte("b"), -1)
	c := mf.CreateMessage([]byte("c"), -1)

	b.PushHeader(a)
	a.PushHeader(b)
	assert.Equal(t, 0, a.NumHeaders())

	c.PushHeader(b)
	a.PushHeader(c)
	assert.Equal(t, 0, a.NumHeaders(), "a is two levels down in c")

	// a header may sit under more than one message
	c.PushHeader(a)
	assert.Equal(t, 2, c.NumHeaders())
	assert.Equal(t, 4, c.MessageLength())
	assert.True(t, c.Equal(c))
	assert.NotEmpty(t, c.String())
}

func TestHeadersReturnsCopy(t *testing.T) {
	mf := CreateMessageFactory()
	hdr := mf.CreateMessage([]byte(headerText), -1)
	msg := mf.CreateMessage([]byte(bodyText), -1, hdr)

	hdrs := msg.Headers()
	hdrs[0] = nil
	assert.Same(t, hdr, msg.PeekHeader())
}

func TestMessageIDs(t *testing.T) {
	mf := CreateMessageFactory()
	a := mf.CreateMessage(nil, -1)
	b := mf.CreateMessage(nil, -1)
	assert.Equal(t, uint64(0), a.ID())
	assert.Equal(t, uint64(1), b.ID())
	assert.Equal(t, uint64(0), CreateMessageFactory().CreateMessage(nil, -1).ID())
}

func TestMessageEqual(t *testing.T) {
	mf := CreateMessageFactory()
	h1 := mf.CreateMessage([]byte("h1"), -1)
	h2 := mf.CreateMessage([]byte("h2"), -1)

	a := mf.CreateMessage([]byte(bodyText), -1, h1, h2)
	b := mf.CreateMessage([]byte(bodyText), -1,
		mf.CreateMessage([]byte("h1"), -1), mf.CreateMessage([]byte("h2"), -1))
	assert.True(t, a.Equal(b), "ids differ but contents match")

	reordered := mf.CreateMessage([]byte(bodyText), -1, h2, h1)
	assert.False(t, a.Equal(reordered))

	assert.False(t, a.Equal(mf.CreateMessage([]byte(bodyText), -1, h1)))
	assert.False(t, a.Equal(mf.CreateMessage([]byte(bodyText), 99, h1, h2)))
	assert.False(t, a.Equal(mf.CreateMessage([]byte(headerText), -1, h1, h2)))
	assert.False(t, mf.CreateMessage(nil, 0).Equal(mf.CreateMessage([]byte{}, 0)))
	assert.False(t, a.Equal(nil))

	var none *Message
	assert.True(t, none.Equal(nil))
}

// pushing then popping any number of headers leaves the message as it was
func TestHeaderRoundTripProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		mf := CreateMessageFactory()
		body := rapid.SliceOfN(rapid.Byte(), 0, 64).Draw(t, "body")
		msg := mf.CreateMessage(body, -1)
		orig := mf.CreateMessage(body, -1)
		baseLen := msg.MessageLength()

		lens := rapid.SliceOfN(rapid.IntRange(0, 100), 0, 10).Draw(t, "lens")
		hdrs := make([]*Message, 0, len(lens))
		total := baseLen
		for _, l := range lens {
			hdr := mf.CreateMessage(nil, l)
			hdrs = append(hdrs, hdr)
			msg.PushHeader(hdr)
			total += l
			if msg.MessageLength() != total {
				t.Fatalf("length %d after push, want %d", msg.MessageLength(), total)
			}
		}
		for idx := len(hdrs) - 1; idx >= 0; idx-- {
			if got := msg.PopHeader(); got != hdrs[idx] {
				t.Fatalf("popped %v, want %v", got, hdrs[idx])
			}
		}
		if msg.MessageLength() != baseLen || !msg.Equal(orig) {
			t.Fatalf("message changed by push/pop: %v", msg)
		}
	})
}
