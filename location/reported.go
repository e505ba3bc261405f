package location

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/golang/geo/s2"
)

var ErrInvalidFix = errors.New("invalid location fix")

// Fix is a position reported by the browser on behalf of the device.
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Validate rejects coordinates outside the valid lat/lng range.
func (f Fix) Validate() error {
	if math.IsNaN(f.Latitude) || math.IsNaN(f.Longitude) || math.IsNaN(f.Accuracy) {
		return ErrInvalidFix
	}
	if !s2.LatLngFromDegrees(f.Latitude, f.Longitude).IsValid() {
		return ErrInvalidFix
	}
	if f.Accuracy < 0 {
		return ErrInvalidFix
	}
	return nil
}

// ReportedProvider is a Provider whose fixes are pushed by the browser. A
// request that cannot be answered from a recent fix calls OnRequest and waits
// for the next Report or Fail.
type ReportedProvider struct {
	mu          sync.Mutex
	last        *Position
	unsupported bool
	waiters     []chan fixResult
	now         func() time.Time

	// OnRequest asks the browser for a fresh fix.
	OnRequest func(opts Options)
}

func NewReportedProvider() *ReportedProvider {
	return &ReportedProvider{now: time.Now}
}

// CurrentPosition returns a cached fix younger than opts.MaxCachedAge or
// waits for the browser to report one.
func (p *ReportedProvider) CurrentPosition(ctx context.Context, opts Options) (Position, error) {
	p.mu.Lock()
	if p.unsupported {
		p.mu.Unlock()
		return Position{}, ErrNotSupported
	}
	if p.last != nil && p.now().Sub(p.last.Timestamp) <= opts.MaxCachedAge {
		pos := *p.last
		p.mu.Unlock()
		return pos, nil
	}
	ch := make(chan fixResult, 1)
	p.waiters = append(p.waiters, ch)
	onRequest := p.OnRequest
	p.mu.Unlock()

	if onRequest != nil {
		onRequest(opts)
	}

	select {
	case res := <-ch:
		return res.pos, res.err
	case <-ctx.Done():
		p.drop(ch)
		return Position{}, ctx.Err()
	}
}

// Report records a fix and answers every waiting request.
func (p *ReportedProvider) Report(fix Fix) error {
	if err := fix.Validate(); err != nil {
		return err
	}
	pos := Position{
		Latitude:  fix.Latitude,
		Longitude: fix.Longitude,
		Accuracy:  fix.Accuracy,
		Timestamp: p.now(),
	}

	p.mu.Lock()
	p.last = &pos
	p.unsupported = false
	p.mu.Unlock()

	p.wake(fixResult{pos: pos})
	return nil
}

// Fail answers every waiting request with the given error code.
func (p *ReportedProvider) Fail(code ErrorCode) {
	p.wake(fixResult{err: &PositionError{Code: code}})
}

// MarkUnsupported records that the device has no location capability.
func (p *ReportedProvider) MarkUnsupported() {
	p.mu.Lock()
	p.unsupported = true
	p.mu.Unlock()
	p.wake(fixResult{err: ErrNotSupported})
}

// Waiting returns the number of requests waiting for the browser.
func (p *ReportedProvider) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

func (p *ReportedProvider) wake(res fixResult) {
	p.mu.Lock()
	waiters := p.waiters
	p.waiters = nil
	p.mu.Unlock()

	for _, ch := range waiters {
		ch <- res
	}
}

func (p *ReportedProvider) drop(ch chan fixResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, w := range p.waiters {
		if w == ch {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return
		}
	}
}
