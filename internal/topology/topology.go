// Package topology provides an in-memory domain.Topology feed for
// running without a live SDN controller attached. Events are injected by
// a driver (a CLI demo, a test, or eventually an OpenFlow event handler)
// and drained by the core the way gossip.SWIM's membership callbacks
// notify a caller of join/leave, translated here to a pulled channel
// since domain.Topology is channel-shaped.
package topology

import (
	"context"
	"sync"

	"github.com/netiads/iads/internal/domain"
)

// Feed is an in-memory, injectable domain.Topology. It buffers events
// until a consumer drains them via Events; injection never blocks on a
// slow or absent consumer beyond the buffer capacity.
type Feed struct {
	mu     sync.Mutex
	ch     chan domain.TopologyEvent
	closed bool
}

// NewFeed creates a Feed with the given channel buffer size.
func NewFeed(buffer int) *Feed {
	if buffer <= 0 {
		buffer = 256
	}
	return &Feed{ch: make(chan domain.TopologyEvent, buffer)}
}

// Events returns the event channel. It closes when ctx is cancelled.
func (f *Feed) Events(ctx context.Context) <-chan domain.TopologyEvent {
	out := make(chan domain.TopologyEvent)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-f.ch:
				if !ok {
					return
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// SwitchEnter injects a switch-discovery event.
func (f *Feed) SwitchEnter(dpid uint64) {
	f.publish(domain.TopologyEvent{Kind: domain.SwitchEnter, DPID: dpid})
}

// LinkAdd injects a link-discovery event between two switch ports.
func (f *Feed) LinkAdd(srcDPID, srcPort, dstDPID, dstPort uint64) {
	f.publish(domain.TopologyEvent{
		Kind: domain.LinkAdd,
		SrcDPID: srcDPID, SrcPort: srcPort,
		DstDPID: dstDPID, DstPort: dstPort,
	})
}

func (f *Feed) publish(ev domain.TopologyEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	select {
	case f.ch <- ev:
	default:
		// Buffer full: drop the oldest pending event rather than block
		// the injecting goroutine, matching gossip's best-effort
		// piggyback queue (swim.go's broadcast list truncation).
		select {
		case <-f.ch:
		default:
		}
		f.ch <- ev
	}
}

// Close stops accepting new events. Safe to call once; a second call
// panics, matching close(chan)'s semantics.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	close(f.ch)
}
