// Package analysis runs sentiment scoring and AI suggestion generation
// for conversation messages off the request path. Handlers enqueue a
// job after a text message is appended; workers score it, attach the
// sentiment to the stored message and, when the negotiation has the
// assistant enabled, append an ai_suggestion message.
package analysis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

// Job is an analysis request for one stored conversation message.
// Body may be backed by a pooled ByteBuffer; consumers must call
// Item.Done() when finished.
type Job struct {
	Negotiation string
	MessageID   string
	Sender      string
	// Body holds the message text to score (may be pooled).
	Body []byte
	// AIEnabled mirrors the negotiation's assistant flag at enqueue
	// time; suggestions are only generated when set.
	AIEnabled bool
	// EnqSeq is a monotonic enqueue sequence assigned on acceptance.
	EnqSeq uint64
}

// ErrQueueFull is returned by TryEnqueue when the queue is at capacity.
var ErrQueueFull = errors.New("analysis queue full")

// Item wraps a Job and owns a pooled ByteBuffer if one was used.
// Consumers MUST call Done() exactly once after processing.
type Item struct {
	Job *Job

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
}

// Done releases pooled resources back to their pools.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.buf != nil {
			if cap(it.buf.B) > maxPooledBuffer {
				it.buf = nil
			} else {
				bytebufferpool.Put(it.buf)
				it.buf = nil
			}
		}
		if it.Job != nil {
			it.Job.Body = nil
			jobPool.Put(it.Job)
			it.Job = nil
		}
		itemPool.Put(it)
	})
}

// Queue is a bounded in-memory queue feeding the analysis workers.
// Safe for concurrent producers; consumers range over Out().
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
}

var jobPool = sync.Pool{New: func() any { return &Job{} }}
var itemPool = sync.Pool{New: func() any { return &Item{} }}

// maxPooledBuffer caps the buffer size returned to the pool; larger
// buffers are dropped so resident memory stays bounded.
var maxPooledBuffer = 256 * 1024 // 256 KiB

// SetMaxPooledBuffer overrides the pooled-buffer cap. Call at startup
// before workers run; values <= 0 are ignored.
func SetMaxPooledBuffer(n int) {
	if n > 0 {
		maxPooledBuffer = n
	}
}

// MaxPooledBuffer returns the current pooled-buffer cap.
func MaxPooledBuffer() int { return maxPooledBuffer }

var enqSeq uint64

// NewQueue creates a bounded Queue. Capacity must be > 0.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// DefaultQueue is the global queue used by handlers. Replace at
// startup via SetDefaultQueue.
var DefaultQueue = NewQueue(8 * 1024)

// SetDefaultQueue replaces the package default queue.
func SetDefaultQueue(q *Queue) {
	if q != nil {
		DefaultQueue = q
	}
}

// Out returns the read-only consumer channel. Do not close it from
// callers.
func (q *Queue) Out() <-chan *Item { return q.ch }

// TryEnqueue enqueues a job by copying its body into a pooled buffer.
// Returns ErrQueueFull when at capacity; the message itself is already
// durable, so callers drop the job and move on.
func (q *Queue) TryEnqueue(job *Job) error {
	newJob := jobPool.Get().(*Job)
	*newJob = *job
	newJob.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(job.Body) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], job.Body...)
		newJob.Body = bb.B[:len(job.Body)]
	}

	it := itemPool.Get().(*Item)
	*it = Item{Job: newJob, buf: bb}

	select {
	case q.ch <- it:
		pendingAdd(job.Negotiation, 1)
		queueDepth.Set(float64(len(q.ch)))
		return nil
	default:
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		jobPool.Put(newJob)
		atomic.AddUint64(&q.dropped, 1)
		jobsDropped.Inc()
		return ErrQueueFull
	}
}

// Enqueue blocks until space is available or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	newJob := jobPool.Get().(*Job)
	*newJob = *job
	newJob.EnqSeq = atomic.AddUint64(&enqSeq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(job.Body) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], job.Body...)
		newJob.Body = bb.B[:len(job.Body)]
	}
	it := itemPool.Get().(*Item)
	*it = Item{Job: newJob, buf: bb}

	select {
	case q.ch <- it:
		pendingAdd(job.Negotiation, 1)
		queueDepth.Set(float64(len(q.ch)))
		return nil
	case <-ctx.Done():
		if bb != nil {
			bytebufferpool.Put(bb)
		}
		jobPool.Put(newJob)
		atomic.AddUint64(&q.dropped, 1)
		jobsDropped.Inc()
		return ctx.Err()
	}
}

// CloseAndDrain closes the queue and drains remaining items, releasing
// their resources and clearing pending counts.
func (q *Queue) CloseAndDrain() {
	close(q.ch)
	for it := range q.ch {
		if it.Job != nil {
			pendingAdd(it.Job.Negotiation, -1)
		}
		it.Done()
	}
}

// Len returns the current number of queued items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns the number of jobs rejected because the queue was
// full or the enqueue context expired.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
