// Package bus delivers extension messages to the shells on the stack.
package bus

import (
	"errors"
	"fmt"

	"github.com/gammazero/deque"

	"os4/internal/logging"
	"os4/internal/shell"
)

// Message ids.
const (
	ExtensionListEnd      uint8 = 0
	ExtensionCAT          uint8 = 1
	ExtensionShellChanged uint8 = 2
)

// ErrDeferred is returned by a send made while another message is being
// delivered. The message is queued and delivered afterwards.
var ErrDeferred = errors.New("message deferred")

// Notification reports whether msg goes to every extension rather than to
// the first one that handles it.
func Notification(msg uint8) bool { return msg == ExtensionShellChanged }

// Reply is one extension's answer to a message.
type Reply struct {
	Shell string
	Data  interface{}
}

type envelope struct {
	to   *shell.Shell // nil means broadcast
	msg  uint8
	data interface{}
}

// Bus walks the extension shells of a stack. It is single threaded; a
// handler that sends while a message is being delivered gets ErrDeferred
// and its message is delivered once the current one is done.
type Bus struct {
	stack      *shell.Stack
	pending    *deque.Deque[envelope]
	delivering bool

	// OnDeferred receives the replies of deferred messages.
	OnDeferred func(msg uint8, replies []Reply)
}

// New returns a bus over stack.
func New(stack *shell.Stack) *Bus {
	return &Bus{stack: stack, pending: new(deque.Deque[envelope])}
}

// Pending returns the number of queued messages.
func (b *Bus) Pending() int { return b.pending.Len() }

// Send delivers msg to one extension.
func (b *Bus) Send(ext *shell.Shell, msg uint8, data interface{}) (interface{}, bool, error) {
	if msg == ExtensionListEnd {
		return nil, false, fmt.Errorf("message id 0 is the list end")
	}
	if ext == nil {
		return nil, false, fmt.Errorf("send %d: %w", msg, shell.ErrNotFound)
	}
	if b.delivering {
		b.enqueue(envelope{to: ext, msg: msg, data: data})
		return nil, false, ErrDeferred
	}
	var reply interface{}
	var ok bool
	b.exclusive(func() { reply, ok = deliver(ext, msg, data) })
	b.drain()
	return reply, ok, nil
}

// Broadcast delivers msg in stack order. Notifications go to every
// extension; other messages stop at the first extension that handles them.
func (b *Bus) Broadcast(msg uint8, data interface{}) ([]Reply, error) {
	if msg == ExtensionListEnd {
		return nil, fmt.Errorf("message id 0 is the list end")
	}
	if b.delivering {
		b.enqueue(envelope{msg: msg, data: data})
		return nil, ErrDeferred
	}
	var replies []Reply
	b.exclusive(func() { replies = b.broadcast(msg, data) })
	b.drain()
	return replies, nil
}

// exclusive runs f with delivery marked in progress. The mark is cleared
// even when a handler panics.
func (b *Bus) exclusive(f func()) {
	b.delivering = true
	defer func() { b.delivering = false }()
	f()
}

func (b *Bus) broadcast(msg uint8, data interface{}) []Reply {
	// Collect first: a handler may change the stack.
	var exts []*shell.Shell
	for c := b.stack.TopExtension(); c.Valid(); c = b.stack.NextExtension(c) {
		exts = append(exts, c.Shell())
	}
	var replies []Reply
	for _, ext := range exts {
		reply, ok := deliver(ext, msg, data)
		if !ok {
			continue
		}
		replies = append(replies, Reply{Shell: ext.Name, Data: reply})
		if !Notification(msg) {
			break
		}
	}
	logging.BusDebug("message %d: %d extension(s), %d reply(ies)", msg, len(exts), len(replies))
	return replies
}

func deliver(ext *shell.Shell, msg uint8, data interface{}) (interface{}, bool) {
	h, ok := ext.Handler(msg)
	if !ok {
		return nil, false
	}
	return h(data)
}

func (b *Bus) enqueue(e envelope) {
	b.pending.PushBack(e)
	logging.BusDebug("deferred message %d (%d pending)", e.msg, b.pending.Len())
}

// drain delivers queued messages in order, including ones queued while
// draining.
func (b *Bus) drain() {
	for b.pending.Len() > 0 {
		e := b.pending.PopFront()
		var replies []Reply
		b.exclusive(func() {
			if e.to == nil {
				replies = b.broadcast(e.msg, e.data)
				return
			}
			if b.stack.Contains(e.to) {
				if reply, ok := deliver(e.to, e.msg, e.data); ok {
					replies = append(replies, Reply{Shell: e.to.Name, Data: reply})
				}
			}
		})
		if b.OnDeferred != nil {
			b.OnDeferred(e.msg, replies)
		}
	}
}
