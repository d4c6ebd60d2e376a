// Package channel implements Althread's channel transport (C5): per-process
// mailboxes, directed links between channel endpoints, and the
// pending-deliveries queue that preserves per-link FIFO while leaving
// cross-link delivery order to the scheduler — the VM's main source of
// non-determinism.
package channel

import (
	"fmt"

	"github.com/althread/althread/internal/value"
)

// Endpoint identifies one (pid, channel-name) mailbox or link source.
type Endpoint struct {
	PID  int
	Name string
}

// Link is a directed (from, to) binding registered by Connect.
type Link struct {
	From Endpoint
	To   Endpoint
}

// omap is a small key-ordered map (keys kept sorted by their fmt.Sprint
// form), used everywhere channel.Transport needs deterministic iteration so
// two structurally equal states hash identically regardless of the order
// operations happened in.
type omap[K comparable, V any] struct {
	keys []K
	vals map[K]V
}

func newOmap[K comparable, V any]() omap[K, V] {
	return omap[K, V]{vals: make(map[K]V)}
}

func (m *omap[K, V]) set(k K, v V) {
	if _, ok := m.vals[k]; !ok {
		ks := fmt.Sprint(k)
		i := len(m.keys)
		for j, kk := range m.keys {
			if fmt.Sprint(kk) > ks {
				i = j
				break
			}
		}
		m.keys = append(m.keys, k)
		copy(m.keys[i+1:], m.keys[i:])
		m.keys[i] = k
	}
	m.vals[k] = v
}

func (m *omap[K, V]) get(k K) (V, bool) {
	v, ok := m.vals[k]
	return v, ok
}

func (m *omap[K, V]) delete(k K) {
	if _, ok := m.vals[k]; !ok {
		return
	}
	delete(m.vals, k)
	for i, kk := range m.keys {
		if kk == k {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

func (m *omap[K, V]) Keys() []K { return m.keys }

// Transport owns all channel state for a single VM instance: mailboxes,
// connections, sends awaiting a connection, and in-flight per-link
// deliveries.
type Transport struct {
	mailboxes         omap[Endpoint, []value.Value]
	connections       omap[Endpoint, Endpoint] // source -> destination
	waitingSend       omap[Endpoint, []value.Value]
	pendingDeliveries omap[Link, []value.Value]
}

func New() *Transport {
	return &Transport{
		mailboxes:         newOmap[Endpoint, []value.Value](),
		connections:       newOmap[Endpoint, Endpoint](),
		waitingSend:       newOmap[Endpoint, []value.Value](),
		pendingDeliveries: newOmap[Link, []value.Value](),
	}
}

// Send enqueues a value sent from source. If source is already connected,
// the value lands in the link's pending-deliveries queue (phase 1 of the
// two-phase send); otherwise it buffers in waitingSend until a Connect
// arrives.
func (t *Transport) Send(source Endpoint, v value.Value) {
	if dest, ok := t.connections.get(source); ok {
		link := Link{From: source, To: dest}
		q, _ := t.pendingDeliveries.get(link)
		t.pendingDeliveries.set(link, append(q, v))
		return
	}
	q, _ := t.waitingSend.get(source)
	t.waitingSend.set(source, append(q, v))
}

// Connect registers a directed link from source to dest. It is idempotent:
// calling it twice with the same source and dest is a no-op, but binding a
// second destination to a source that already has one is an error (a
// channel source may only ever be bound once). Any values already sent
// from source while unconnected are drained into the link's
// pending-deliveries queue, producing an observable global action.
func (t *Transport) Connect(source, dest Endpoint) error {
	if existing, ok := t.connections.get(source); ok {
		if existing == dest {
			return nil
		}
		return fmt.Errorf("channel %v is already connected to %v", source, existing)
	}
	t.connections.set(source, dest)
	if pending, ok := t.waitingSend.get(source); ok && len(pending) > 0 {
		link := Link{From: source, To: dest}
		q, _ := t.pendingDeliveries.get(link)
		t.pendingDeliveries.set(link, append(q, pending...))
		t.waitingSend.delete(source)
	}
	return nil
}

// PendingLinks lists every link with at least one queued delivery, in
// omap key order. The scheduler (and the model checker) enumerates these
// as successor-generating events alongside every executable program.
func (t *Transport) PendingLinks() []Link {
	var links []Link
	for _, l := range t.pendingDeliveries.Keys() {
		if q, _ := t.pendingDeliveries.get(l); len(q) > 0 {
			links = append(links, l)
		}
	}
	return links
}

// DeliverOne moves the head of link's queue into its destination mailbox.
// Per-link FIFO means a link's messages always leave in the order they
// were sent; cross-link delivery order is whatever the scheduler chooses.
func (t *Transport) DeliverOne(link Link) (value.Value, error) {
	q, ok := t.pendingDeliveries.get(link)
	if !ok || len(q) == 0 {
		return nil, fmt.Errorf("internal error: deliver on empty link %v", link)
	}
	msg := q[0]
	rest := append([]value.Value(nil), q[1:]...)
	if len(rest) == 0 {
		t.pendingDeliveries.delete(link)
	} else {
		t.pendingDeliveries.set(link, rest)
	}
	box, _ := t.mailboxes.get(link.To)
	t.mailboxes.set(link.To, append(box, msg))
	return msg, nil
}

// Peek returns the head message of endpoint's mailbox without removing it.
func (t *Transport) Peek(endpoint Endpoint) (value.Value, bool) {
	box, ok := t.mailboxes.get(endpoint)
	if !ok || len(box) == 0 {
		return nil, false
	}
	return box[0], true
}

// Pop removes the head message of endpoint's mailbox.
func (t *Transport) Pop(endpoint Endpoint) {
	box, ok := t.mailboxes.get(endpoint)
	if !ok || len(box) == 0 {
		return
	}
	rest := append([]value.Value(nil), box[1:]...)
	if len(rest) == 0 {
		t.mailboxes.delete(endpoint)
	} else {
		t.mailboxes.set(endpoint, rest)
	}
}

// RemoveProgram drops every mailbox, connection, waiting-send and pending
// link referencing pid, called when a program terminates.
func (t *Transport) RemoveProgram(pid int) {
	for _, e := range append([]Endpoint(nil), t.mailboxes.Keys()...) {
		if e.PID == pid {
			t.mailboxes.delete(e)
		}
	}
	for _, e := range append([]Endpoint(nil), t.connections.Keys()...) {
		if e.PID == pid {
			t.connections.delete(e)
		}
	}
	for _, e := range append([]Endpoint(nil), t.waitingSend.Keys()...) {
		if e.PID == pid {
			t.waitingSend.delete(e)
		}
	}
	for _, l := range append([]Link(nil), t.pendingDeliveries.Keys()...) {
		if l.From.PID == pid || l.To.PID == pid {
			t.pendingDeliveries.delete(l)
		}
	}
}

// Clone returns a deep, independent copy of the transport, used whenever
// the model checker or the simulator needs to branch the VM state.
func (t *Transport) Clone() *Transport {
	c := New()
	for _, k := range t.mailboxes.Keys() {
		v, _ := t.mailboxes.get(k)
		c.mailboxes.set(k, append([]value.Value(nil), v...))
	}
	for _, k := range t.connections.Keys() {
		v, _ := t.connections.get(k)
		c.connections.set(k, v)
	}
	for _, k := range t.waitingSend.Keys() {
		v, _ := t.waitingSend.get(k)
		c.waitingSend.set(k, append([]value.Value(nil), v...))
	}
	for _, k := range t.pendingDeliveries.Keys() {
		v, _ := t.pendingDeliveries.get(k)
		c.pendingDeliveries.set(k, append([]value.Value(nil), v...))
	}
	return c
}

// Hash appends a deterministic encoding of the transport's observable
// state to buf, in omap key order (independent of insertion order).
func (t *Transport) Hash(buf []byte) []byte {
	for _, k := range t.mailboxes.Keys() {
		vals, _ := t.mailboxes.get(k)
		if len(vals) == 0 {
			continue
		}
		buf = appendEndpoint(buf, k)
		for _, v := range vals {
			buf = append(buf, value.Hash(v)...)
		}
		buf = append(buf, 0xFF)
	}
	buf = append(buf, 0xFE)
	for _, k := range t.connections.Keys() {
		dest, _ := t.connections.get(k)
		buf = appendEndpoint(buf, k)
		buf = appendEndpoint(buf, dest)
	}
	buf = append(buf, 0xFE)
	for _, k := range t.waitingSend.Keys() {
		vals, _ := t.waitingSend.get(k)
		if len(vals) == 0 {
			continue
		}
		buf = appendEndpoint(buf, k)
		for _, v := range vals {
			buf = append(buf, value.Hash(v)...)
		}
		buf = append(buf, 0xFF)
	}
	buf = append(buf, 0xFE)
	for _, l := range t.pendingDeliveries.Keys() {
		vals, _ := t.pendingDeliveries.get(l)
		if len(vals) == 0 {
			continue
		}
		buf = appendEndpoint(buf, l.From)
		buf = appendEndpoint(buf, l.To)
		for _, v := range vals {
			buf = append(buf, value.Hash(v)...)
		}
		buf = append(buf, 0xFF)
	}
	return buf
}

func appendEndpoint(buf []byte, e Endpoint) []byte {
	buf = append(buf, []byte(e.Name)...)
	buf = append(buf, 0)
	u := uint64(e.PID)
	for s := 0; s < 64; s += 8 {
		buf = append(buf, byte(u>>s))
	}
	return buf
}
