package rpcsrv

import (
	"github.com/gorilla/websocket"
	"github.com/nspcc-dev/cmtree/pkg/rpc"
	"go.uber.org/atomic"
)

// subscriber is an event subscriber.
type subscriber struct {
	writer    chan<- *websocket.PreparedMessage
	ws        *websocket.Conn
	overflown atomic.Bool
	// These work like slots as there is not a lot of them (it's
	// cheaper doing it this way rather than creating a map).
	feeds [maxFeeds]rpc.EventID
}

const (
	// The maximum number of subscriptions per one client.
	maxFeeds = 16

	// This sets notification messages buffer depth. There is a gap in speed
	// between internal event processing and networking communication, so
	// bursts of root updates can put some pressure on this buffer. At the
	// same time the channel is only passing pointers around, it's not a lot
	// of memory.
	notificationBufSize = 1024
)
