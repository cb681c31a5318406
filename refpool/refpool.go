/*
DESCRIPTION
  refpool.go implements the Reference Pool (§4.4): up to 8 reference
  slots plus the producer's in-flight current frame, with
  reference-counted borrows and a row-level progress signal gating
  frame-parallel motion-compensation reads. The slot map is guarded
  by a sync.RWMutex the way container/mts/meta/meta.go guards its
  metadata map; the progress signal is message-based (§9, "avoiding
  hand-written condition-variable use") rather than a raw mutex+cond,
  so an await composes with cancellation the way revid.go's
  sync.WaitGroup-based shutdown composes with its stop channel.

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package refpool implements the reference-frame pool and row-progress
// signal used to coordinate frame-parallel and tile-parallel decode
// (§4.4). A Pool holds up to NumSlots reference pictures; callers
// acquire a fresh FrameBuffer to decode into, borrow existing slots for
// motion compensation, and promote the finished frame into the slot set
// with StoreCurrent.
package refpool

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/ausocean/vcore/verr"
)

// NumSlots is the number of addressable reference slots (§4.4).
const NumSlots = 8

// MaxLiveBuffers bounds the number of FrameBuffer allocations
// outstanding at once: the 8 reference slots plus the single in-flight
// current frame (§4.4, "the reference-refresh discipline guarantees at
// most nine live frames").
const MaxLiveBuffers = NumSlots + 1

// Layout describes the pixel buffer shape a FrameBuffer is allocated
// with.
type Layout struct {
	Width, Height     int
	SubsamplingX      int
	SubsamplingY      int
	BitDepth          int
}

// Watched is a single-producer, many-consumer monotonic counter:
// Report publishes a new value and Await blocks until the published
// value reaches a target or the context is cancelled. It replaces a raw
// mutex-guarded integer with condition-variable waits (§9) with a
// channel swap, so Await can select across both the update and
// ctx.Done() without hand-rolled wait/notify bookkeeping.
type Watched struct {
	mu    sync.Mutex
	value uint32
	ch    chan struct{}
}

// NewWatched returns a Watched counter starting at 0.
func NewWatched() *Watched {
	return &Watched{ch: make(chan struct{})}
}

// Report publishes row as the new progress value. Reports at or below
// the currently observed value are ignored (§4.4, "later reports with
// lower values are ignored").
func (w *Watched) Report(row uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if row <= w.value {
		return
	}
	w.value = row
	close(w.ch)
	w.ch = make(chan struct{})
}

// Value returns the current progress value.
func (w *Watched) Value() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.value
}

// Await blocks until the published value reaches at least row, or ctx
// is done. An Await for a value already reached returns immediately
// (§4.4, "awaits with a value below the currently observed progress
// return immediately").
func (w *Watched) Await(ctx context.Context, row uint32) error {
	for {
		w.mu.Lock()
		if w.value >= row {
			w.mu.Unlock()
			return nil
		}
		ch := w.ch
		w.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return errors.Wrap(verr.ErrCancelled, "await_progress")
		}
	}
}

// FrameBuffer is a reference-counted pixel buffer. Its interior is
// mutable only by the producer decoding into it; once it is promoted
// into the pool via StoreCurrent it must not be written again, matching
// the "ReferenceSlot = Rc<FrameBuffer>... non-mutable after
// store_current" design note (§9).
type FrameBuffer struct {
	Layout   Layout
	Planes   [3][]byte
	Strides  [3]int
	Progress *Watched

	pool *Pool
	refs atomic.Int32
}

// planeSize returns the byte length of plane p for the given layout.
func planeSize(l Layout, plane int) (w, h int) {
	if plane == 0 {
		return l.Width, l.Height
	}
	w = (l.Width + l.SubsamplingX) >> uint(l.SubsamplingX)
	h = (l.Height + l.SubsamplingY) >> uint(l.SubsamplingY)
	return w, h
}

func newFrameBuffer(l Layout) *FrameBuffer {
	fb := &FrameBuffer{Layout: l, Progress: NewWatched()}
	for p := 0; p < 3; p++ {
		w, h := planeSize(l, p)
		fb.Strides[p] = w
		fb.Planes[p] = make([]byte, w*h)
	}
	fb.refs.Store(1)
	return fb
}

// ReportProgress records that superblock rows up to row have finished
// reconstruction and loop-filtering for this frame.
func (fb *FrameBuffer) ReportProgress(row uint32) { fb.Progress.Report(row) }

// AwaitProgress blocks until fb has reconstructed at least through row,
// or ctx is cancelled.
func (fb *FrameBuffer) AwaitProgress(ctx context.Context, row uint32) error {
	return fb.Progress.Await(ctx, row)
}

// Borrow is a released-once handle on a reference-pool slot's
// FrameBuffer, obtained from Pool.TakeReference.
type Borrow struct {
	fb       *FrameBuffer
	pool     *Pool
	released atomic.Bool
}

// Frame returns the borrowed FrameBuffer. It must not be called after
// Release.
func (b *Borrow) Frame() *FrameBuffer { return b.fb }

// Release drops this borrow. It is safe to call at most once; a second
// call is a no-op.
func (b *Borrow) Release() {
	if b.released.Swap(true) {
		return
	}
	b.pool.release(b.fb)
}

// Pool holds up to NumSlots reference pictures plus tracks the total
// count of live FrameBuffer allocations (§4.4).
type Pool struct {
	mu    sync.RWMutex
	slots [NumSlots]*FrameBuffer
	live  int
}

// New returns an empty reference pool.
func New() *Pool {
	return &Pool{}
}

// AcquireBuffer obtains a fresh FrameBuffer compatible with the given
// layout. It fails with verr.ErrAlloc when MaxLiveBuffers are
// already outstanding.
func (p *Pool) AcquireBuffer(l Layout) (*FrameBuffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.live >= MaxLiveBuffers {
		return nil, errors.Wrap(verr.ErrAlloc, "acquire_buffer")
	}
	fb := newFrameBuffer(l)
	fb.pool = p
	p.live++
	return fb, nil
}

// TakeReference produces a Borrow of reference slot i. Multiple borrows
// of the same slot may coexist.
func (p *Pool) TakeReference(slot int) (*Borrow, error) {
	if slot < 0 || slot >= NumSlots {
		return nil, errors.Wrapf(verr.ErrRefUnavailable, "take_reference: slot %d out of range", slot)
	}

	p.mu.RLock()
	fb := p.slots[slot]
	p.mu.RUnlock()

	if fb == nil {
		return nil, errors.Wrapf(verr.ErrRefUnavailable, "take_reference: slot %d empty", slot)
	}
	fb.refs.Add(1)
	return &Borrow{fb: fb, pool: p}, nil
}

// StoreCurrent promotes current into every reference slot whose bit is
// set in refreshMask, dropping (and possibly freeing) whatever
// FrameBuffer previously occupied that slot (§4.4). Slot replacement is
// atomic with respect to concurrent TakeReference calls: a racing
// TakeReference either observes the old occupant (and holds a valid
// borrow on it) or the new one, never a half-written slot.
func (p *Pool) StoreCurrent(current *FrameBuffer, refreshMask uint8) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := 0; i < NumSlots; i++ {
		if refreshMask&(1<<uint(i)) == 0 {
			continue
		}
		old := p.slots[i]
		current.refs.Add(1)
		p.slots[i] = current
		if old != nil {
			p.releaseLocked(old)
		}
	}
}

// Release drops the producer's own reference to fb (the one implicitly
// held since AcquireBuffer), for frames that are shown but never stored
// as a reference, or once a caller is done with a frame it displayed.
func (p *Pool) Release(fb *FrameBuffer) { p.release(fb) }

func (p *Pool) release(fb *FrameBuffer) {
	if fb.refs.Add(-1) != 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live--
}

func (p *Pool) releaseLocked(fb *FrameBuffer) {
	if fb.refs.Add(-1) != 0 {
		return
	}
	p.live--
}

// LiveBuffers reports the number of FrameBuffer allocations currently
// outstanding, for diagnostics and tests.
func (p *Pool) LiveBuffers() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.live
}
