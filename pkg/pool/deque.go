package pool

// jobDeque is a ring-buffer FIFO of queued jobs.
// Not safe for concurrent use; boundedQueue serializes access to it.
type jobDeque struct {
	buf  []*queuedJob
	head int // index of the oldest item
	size int
}

const minDequeCap = 8

func newJobDeque(capHint int) *jobDeque {
	if capHint < minDequeCap {
		capHint = minDequeCap
	}
	return &jobDeque{
		buf: make([]*queuedJob, capHint),
	}
}

// pushBack appends qj as the newest item, growing the ring when full. O(1) amortized.
func (d *jobDeque) pushBack(qj *queuedJob) {
	if d.size == len(d.buf) {
		d.grow()
	}
	d.buf[(d.head+d.size)%len(d.buf)] = qj
	d.size++
}

// popFront removes and returns the oldest item.
// ok is false when the deque is empty.
func (d *jobDeque) popFront() (*queuedJob, bool) {
	if d.size == 0 {
		return nil, false
	}
	qj := d.buf[d.head]
	d.buf[d.head] = nil // release the reference
	d.head = (d.head + 1) % len(d.buf)
	d.size--
	return qj, true
}

// peekFront returns the oldest item without removing it.
func (d *jobDeque) peekFront() (*queuedJob, bool) {
	if d.size == 0 {
		return nil, false
	}
	return d.buf[d.head], true
}

// drain removes every remaining item and returns them in FIFO order,
// leaving the deque in the canonical empty state. Safe to call on an
// empty deque.
func (d *jobDeque) drain() []*queuedJob {
	if d.size == 0 {
		return nil
	}
	out := make([]*queuedJob, 0, d.size)
	for {
		qj, ok := d.popFront()
		if !ok {
			break
		}
		out = append(out, qj)
	}
	return out
}

func (d *jobDeque) len() int {
	return d.size
}

func (d *jobDeque) grow() {
	next := make([]*queuedJob, len(d.buf)*2)
	for i := 0; i < d.size; i++ {
		next[i] = d.buf[(d.head+i)%len(d.buf)]
	}
	d.buf = next
	d.head = 0
}
