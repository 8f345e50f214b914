package comm

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// fakeTransport answers queries from a per-code table and records every call.
type fakeTransport struct {
	mu        sync.Mutex
	writes    [][]byte
	reads     []int
	responses map[byte][]byte
	writeN    int
	writeErr  error
	readErr   error
	panicOn   byte
	closed    int

	// gate, when set, blocks every Write until it receives a value
	gate chan struct{}

	busy     int32
	overlaps int32
	hold     time.Duration
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		responses: map[byte][]byte{
			90: {0x01, 0x02},
			91: {0x05},
		},
	}
}

func (f *fakeTransport) enter() {
	if atomic.AddInt32(&f.busy, 1) > 1 {
		atomic.AddInt32(&f.overlaps, 1)
	}
	if f.hold > 0 {
		time.Sleep(f.hold)
	}
}

func (f *fakeTransport) leave() {
	atomic.AddInt32(&f.busy, -1)
}

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.enter()
	defer f.leave()
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != 0 && p[0] == f.panicOn {
		f.panicOn = 0
		panic("device exploded")
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	if f.writeN != 0 {
		return f.writeN, nil
	}
	return len(p), nil
}

func (f *fakeTransport) ReadExact(n int) ([]byte, error) {
	f.enter()
	defer f.leave()
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, n)
	if f.readErr != nil {
		err := f.readErr
		f.readErr = nil
		return nil, err
	}
	last := f.writes[len(f.writes)-1][0]
	resp, ok := f.responses[last]
	if !ok || len(resp) != n {
		return nil, errors.New("no canned response")
	}
	return append([]byte(nil), resp...), nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeTransport) writtenCodes() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	codes := make([]byte, 0, len(f.writes))
	for _, w := range f.writes {
		codes = append(codes, w...)
	}
	return codes
}

func (f *fakeTransport) readSizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.reads...)
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeTransport) opener() Opener {
	return func(PortConfig) (Transport, error) {
		return f, nil
	}
}
