package location

import (
	"context"
	"errors"
	"sync"

	"houtveilig/metrics"
	"houtveilig/models"

	"github.com/apex/log"
)

// Status states
const (
	StateIdle    = "idle"
	StateLoading = "loading"
	StateSuccess = "success"
	StateError   = "error"
)

// Status is what the location indicator shows.
type Status struct {
	State         string  `json:"state"`
	Message       string  `json:"message"`
	Latitude      float64 `json:"latitude,omitempty"`
	Longitude     float64 `json:"longitude,omitempty"`
	Accuracy      float64 `json:"accuracy,omitempty"`
	Coordinates   string  `json:"coordinates,omitempty"`
	AccuracyLabel string  `json:"accuracy_label,omitempty"`
	MapURL        string  `json:"map_url,omitempty"`
}

// Acquirer runs location requests and keeps the last applied status.
// Requests are not cancelled by newer ones; whichever finishes last wins.
type Acquirer struct {
	provider Provider
	opts     Options

	mu     sync.Mutex
	status Status

	// OnStatus, when set, receives every status change. loc is non-nil only
	// for a successful fix.
	OnStatus func(status Status, loc *models.Location)
}

// NewAcquirer creates an acquirer. A nil provider means the device has no
// location capability.
func NewAcquirer(provider Provider, opts Options) *Acquirer {
	return &Acquirer{
		provider: provider,
		opts:     opts,
		status:   Status{State: StateIdle},
	}
}

// Status returns the last applied status.
func (a *Acquirer) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Acquire asks the provider for a fix, giving up after the configured timeout
// even when the provider ignores ctx.
func (a *Acquirer) Acquire(ctx context.Context) (Status, *models.Location) {
	if a.provider == nil {
		metrics.LocationRequestsTotal.WithLabelValues("unsupported").Inc()
		st := Status{State: StateError, Message: MessageNotSupported}
		a.apply(st, nil)
		return st, nil
	}

	a.apply(Status{State: StateLoading, Message: MessageLoading}, nil)

	pos, err := a.query(ctx)
	if err != nil {
		metrics.LocationRequestsTotal.WithLabelValues(resultLabel(err)).Inc()
		log.WithError(err).Warn("location acquisition failed")
		st := Status{State: StateError, Message: Message(err)}
		a.apply(st, nil)
		return st, nil
	}

	loc := &models.Location{
		Latitude:       pos.Latitude,
		Longitude:      pos.Longitude,
		AccuracyMeters: pos.Accuracy,
	}
	st := Status{
		State:         StateSuccess,
		Message:       MessageSuccess,
		Latitude:      loc.Latitude,
		Longitude:     loc.Longitude,
		Accuracy:      loc.AccuracyMeters,
		Coordinates:   loc.Coordinates(),
		AccuracyLabel: loc.AccuracyLabel(),
		MapURL:        loc.MapsURL(),
	}
	metrics.LocationRequestsTotal.WithLabelValues("success").Inc()
	a.apply(st, loc)
	return st, loc
}

type fixResult struct {
	pos Position
	err error
}

func (a *Acquirer) query(ctx context.Context) (Position, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	ch := make(chan fixResult, 1)
	go func() {
		pos, err := a.provider.CurrentPosition(ctx, a.opts)
		ch <- fixResult{pos: pos, err: err}
	}()

	select {
	case res := <-ch:
		if errors.Is(res.err, context.DeadlineExceeded) {
			return Position{}, &PositionError{Code: CodeTimeout}
		}
		return res.pos, res.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Position{}, &PositionError{Code: CodeTimeout}
		}
		return Position{}, ctx.Err()
	}
}

func (a *Acquirer) apply(st Status, loc *models.Location) {
	a.mu.Lock()
	a.status = st
	onStatus := a.OnStatus
	a.mu.Unlock()

	if onStatus != nil {
		onStatus(st, loc)
	}
}

func resultLabel(err error) string {
	if errors.Is(err, ErrNotSupported) {
		return "unsupported"
	}
	var perr *PositionError
	if errors.As(err, &perr) {
		switch perr.Code {
		case CodePermissionDenied:
			return "permission_denied"
		case CodePositionUnavailable:
			return "unavailable"
		case CodeTimeout:
			return "timeout"
		}
	}
	return "unknown"
}
