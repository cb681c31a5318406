package refpool

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/ausocean/vcore/verr"
)

var testLayout = Layout{Width: 16, Height: 16}

func TestAcquireBufferFailsPastMaxLive(t *testing.T) {
	p := New()
	var bufs []*FrameBuffer
	for i := 0; i < MaxLiveBuffers; i++ {
		fb, err := p.AcquireBuffer(testLayout)
		if err != nil {
			t.Fatalf("AcquireBuffer %d: %v", i, err)
		}
		bufs = append(bufs, fb)
	}
	if _, err := p.AcquireBuffer(testLayout); errors.Cause(err) != verr.ErrAlloc {
		t.Errorf("expected ErrAlloc once MaxLiveBuffers is reached, got %v", err)
	}
	for _, fb := range bufs {
		p.Release(fb)
	}
	if _, err := p.AcquireBuffer(testLayout); err != nil {
		t.Errorf("AcquireBuffer after releasing all buffers: %v", err)
	}
}

func TestTakeReferenceOnEmptySlotFails(t *testing.T) {
	p := New()
	if _, err := p.TakeReference(0); errors.Cause(err) != verr.ErrRefUnavailable {
		t.Errorf("TakeReference on empty slot = %v, want ErrRefUnavailable", err)
	}
	if _, err := p.TakeReference(NumSlots); errors.Cause(err) != verr.ErrRefUnavailable {
		t.Errorf("TakeReference out of range = %v, want ErrRefUnavailable", err)
	}
}

// TestAtMostEightReferenceSlots is invariant 1 of §8: the pool
// structurally admits no more than NumSlots distinct reference
// pictures, however many concurrent borrows of them exist.
func TestAtMostEightReferenceSlots(t *testing.T) {
	p := New()
	fb, err := p.AcquireBuffer(testLayout)
	if err != nil {
		t.Fatal(err)
	}
	p.StoreCurrent(fb, 0xFF) // refresh every slot with the same frame

	var wg sync.WaitGroup
	borrows := make(chan *Borrow, 64)
	for i := 0; i < NumSlots; i++ {
		for j := 0; j < 8; j++ {
			wg.Add(1)
			go func(slot int) {
				defer wg.Done()
				b, err := p.TakeReference(slot)
				if err != nil {
					t.Errorf("TakeReference(%d): %v", slot, err)
					return
				}
				borrows <- b
			}(i)
		}
	}
	wg.Wait()
	close(borrows)

	count := 0
	seen := map[*FrameBuffer]bool{}
	for b := range borrows {
		seen[b.Frame()] = true
		count++
		b.Release()
	}
	if len(seen) > NumSlots {
		t.Errorf("observed %d distinct reference pictures, want <= %d", len(seen), NumSlots)
	}
	if count != NumSlots*8 {
		t.Errorf("got %d successful borrows, want %d", count, NumSlots*8)
	}

	p.Release(fb)
	if got := p.LiveBuffers(); got != 1 {
		t.Errorf("LiveBuffers() = %d after all borrows and the acquire reference are released, want 1 (the slots still hold the frame)", got)
	}
}

func TestStoreCurrentReplacesOnlyMaskedSlots(t *testing.T) {
	p := New()
	a, _ := p.AcquireBuffer(testLayout)
	p.StoreCurrent(a, 0b0000_0011) // slots 0,1

	b, _ := p.AcquireBuffer(testLayout)
	p.StoreCurrent(b, 0b0000_0001) // slot 0 only

	r0, err := p.TakeReference(0)
	if err != nil {
		t.Fatal(err)
	}
	if r0.Frame() != b {
		t.Errorf("slot 0 holds the wrong frame after refresh")
	}
	r0.Release()

	r1, err := p.TakeReference(1)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Frame() != a {
		t.Errorf("slot 1 was refreshed despite a clear mask bit")
	}
	r1.Release()

	p.Release(a)
	p.Release(b)
}

// TestAwaitProgressGatesOnReportedRow is invariant 2 of §8: a read at
// destination row r using reference frame R must not proceed until
// R.progress has reached at least r.
func TestAwaitProgressGatesOnReportedRow(t *testing.T) {
	fb := newFrameBuffer(testLayout)

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := fb.AwaitProgress(context.Background(), 10); err != nil {
			t.Errorf("AwaitProgress: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatal("AwaitProgress returned before progress reached the target row")
	case <-time.After(20 * time.Millisecond):
	}

	fb.ReportProgress(5)
	select {
	case <-done:
		t.Fatal("AwaitProgress returned after an insufficient report")
	case <-time.After(20 * time.Millisecond):
	}

	fb.ReportProgress(10)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("AwaitProgress did not return after a sufficient report")
	}
}

func TestWatchedIgnoresLowerReports(t *testing.T) {
	w := NewWatched()
	w.Report(10)
	w.Report(3)
	if got := w.Value(); got != 10 {
		t.Errorf("Value() = %d, want 10 (lower report must be ignored)", got)
	}
}

func TestAwaitProgressReturnsImmediatelyWhenAlreadySatisfied(t *testing.T) {
	w := NewWatched()
	w.Report(20)
	if err := w.Await(context.Background(), 5); err != nil {
		t.Errorf("Await: %v", err)
	}
}

func TestAwaitProgressRespectsCancellation(t *testing.T) {
	w := NewWatched()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Await(ctx, 1); errors.Cause(err) != verr.ErrCancelled {
		t.Errorf("Await with cancelled context = %v, want ErrCancelled", err)
	}
}
