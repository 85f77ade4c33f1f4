// Package tally drives the GPIO line as an on-air indicator: high while any
// stream on the host is live, with an optional blink sequence on demand.
package tally

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/smazurov/tally/internal/events"
	"github.com/smazurov/tally/internal/metrics"
)

// ErrInvalidBlink is returned by Blink for a non-positive count or period.
var ErrInvalidBlink = errors.New("tally: blink count and period must be positive")

// Sources reported in LineChangedEvent.
const (
	SourceStreams = "streams"
	SourceBlink   = "blink"
)

// Line is the part of *gpio.Line the manager needs.
type Line interface {
	SetValue(value bool) error
	Number() int
}

// Option configures a Manager.
type Option func(*Manager)

// WithActiveLow inverts the written level for lamps wired active-low.
func WithActiveLow(activeLow bool) Option {
	return func(m *Manager) {
		m.activeLow = activeLow
	}
}

// Manager subscribes to stream state events and keeps the tally line in
// sync with the aggregate state.
type Manager struct {
	line        Line
	eventBus    *events.Bus
	activeLow   bool
	logger      *slog.Logger
	unsubscribe func()

	// mu guards the fields below and orders writes to the line.
	mu          sync.Mutex
	streams     map[string]bool
	blinkCancel context.CancelFunc
	blinkDone   chan struct{}
}

// NewManager creates a tally manager for line.
func NewManager(line Line, eventBus *events.Bus, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		line:     line,
		eventBus: eventBus,
		logger:   logger,
		streams:  make(map[string]bool),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start subscribes to stream state changes and drives the line to idle.
func (m *Manager) Start() {
	m.unsubscribe = m.eventBus.Subscribe(func(e events.StreamStateChangedEvent) {
		m.handleEvent(e)
	})

	m.mu.Lock()
	m.driveLocked(len(m.streams) > 0, SourceStreams)
	m.mu.Unlock()

	m.logger.Info("Tally manager started", "line", m.line.Number(), "active_low", m.activeLow)
}

// Stop unsubscribes, cancels any blink in progress and turns the tally off.
func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}

	m.mu.Lock()
	cancel, done := m.blinkCancel, m.blinkDone
	m.blinkCancel, m.blinkDone = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	m.mu.Lock()
	m.driveLocked(false, SourceStreams)
	m.mu.Unlock()

	m.logger.Info("Tally manager stopped")
}

// Active reports whether any stream is live.
func (m *Manager) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.streams) > 0
}

// ActiveStreams returns the live stream IDs, sorted.
func (m *Manager) ActiveStreams() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.streams))
	for id := range m.streams {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	slices.Sort(ids)
	return ids
}

// Blinking reports whether a blink sequence is running.
func (m *Manager) Blinking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blinkDone != nil
}

// Blink toggles the line count times, spending half of period on and half
// off, then restores the level implied by the live streams. A new Blink
// replaces one in progress. Blink returns immediately.
func (m *Manager) Blink(count int, period time.Duration) error {
	if count <= 0 || period <= 0 {
		return ErrInvalidBlink
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.blinkCancel != nil {
		m.blinkCancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	m.blinkCancel, m.blinkDone = cancel, done

	m.logger.Debug("Blink started", "count", count, "period", period)
	go m.runBlink(ctx, count, period, done)
	return nil
}

func (m *Manager) runBlink(ctx context.Context, count int, period time.Duration, done chan struct{}) {
	defer close(done)

	half := period / 2
	for range count {
		if !m.blinkStep(ctx, true) || !sleepCtx(ctx, half) {
			return
		}
		if !m.blinkStep(ctx, false) || !sleepCtx(ctx, half) {
			return
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A newer Blink or Stop owns the line now.
	if m.blinkDone != done {
		return
	}
	m.blinkCancel()
	m.blinkCancel, m.blinkDone = nil, nil
	m.driveLocked(len(m.streams) > 0, SourceStreams)
	m.logger.Debug("Blink finished")
}

func (m *Manager) blinkStep(ctx context.Context, on bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctx.Err() != nil {
		return false
	}
	m.driveLocked(on, SourceBlink)
	return true
}

// handleEvent records one stream's state and updates the line unless a
// blink is running; the blink restores the aggregate level when it ends.
func (m *Manager) handleEvent(event events.StreamStateChangedEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if event.Active {
		m.streams[event.StreamID] = true
	} else {
		delete(m.streams, event.StreamID)
	}
	active := len(m.streams)
	metrics.SetStreamsActive(active)

	m.logger.Debug("Stream state changed",
		"stream_id", event.StreamID,
		"active", event.Active,
		"active_streams", active)

	if m.blinkDone != nil {
		return
	}
	m.driveLocked(active > 0, SourceStreams)
}

// driveLocked writes the tally state to the line. Callers hold mu.
func (m *Manager) driveLocked(on bool, source string) {
	level := on != m.activeLow
	if err := m.line.SetValue(level); err != nil {
		m.logger.Warn("Failed to set tally line", "on", on, "source", source, "error", err)
		return
	}
	m.eventBus.Publish(events.LineChangedEvent{
		Line:      m.line.Number(),
		Value:     level,
		Source:    source,
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// sleepCtx waits d or until ctx is done; it reports whether d elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
