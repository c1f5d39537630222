package jobs

import "sync"

const defaultEventCapacity = 256

// eventRing keeps the most recent events in a fixed-size buffer.
type eventRing struct {
	mu     sync.Mutex
	buf    []Event
	next   int
	filled bool
	seq    uint64
}

func newEventRing(capacity int) *eventRing {
	if capacity <= 0 {
		capacity = defaultEventCapacity
	}
	return &eventRing{buf: make([]Event, capacity)}
}

func (r *eventRing) add(e Event) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	e.Seq = r.seq
	r.buf[r.next] = e
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.filled = true
	}
	return e
}

// since returns retained events with Seq > after, oldest first.
func (r *eventRing) since(after uint64) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ordered []Event
	if r.filled {
		ordered = append(ordered, r.buf[r.next:]...)
	}
	ordered = append(ordered, r.buf[:r.next]...)

	ret := make([]Event, 0, len(ordered))
	for _, e := range ordered {
		if e.Seq > after {
			ret = append(ret, e)
		}
	}
	return ret
}

func (r *eventRing) lastSeq() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}
