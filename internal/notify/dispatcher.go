package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/models"
)

var (
	ErrDispatcherFull   = errors.New("notification buffer is full")
	ErrDispatcherClosed = errors.New("notification dispatcher is closed")
)

// Sink delivers a notification to one destination.
type Sink interface {
	Name() string
	Send(ctx context.Context, n models.Notification) error
}

// Dispatcher fans committed payment events out to its sinks on a background
// worker. Publishing never blocks the caller.
type Dispatcher struct {
	events      chan models.Notification
	done        chan struct{}
	sinks       []Sink
	sendTimeout time.Duration
	closed      bool
	mu          sync.RWMutex
	wg          sync.WaitGroup
	logger      *logrus.Logger
}

// NewDispatcher creates a dispatcher holding at most bufferSize undelivered events.
func NewDispatcher(bufferSize int, sendTimeout time.Duration, logger *logrus.Logger, sinks ...Sink) *Dispatcher {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		events:      make(chan models.Notification, bufferSize),
		done:        make(chan struct{}),
		sinks:       sinks,
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Publish queues n for delivery. A full buffer drops the event.
func (d *Dispatcher) Publish(n models.Notification) {
	if err := d.TryPublish(n); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"type": n.Type,
			"unit": n.UnitLabel,
		}).Warn("Dropped notification")
	}
}

// TryPublish is Publish that reports why an event was dropped.
func (d *Dispatcher) TryPublish(n models.Notification) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}

	select {
	case d.events <- n:
		return nil
	default:
		return ErrDispatcherFull
	}
}

// Start launches the delivery worker.
func (d *Dispatcher) Start() {
	d.wg.Add(1)
	go d.process()
}

func (d *Dispatcher) process() {
	defer d.wg.Done()
	for {
		select {
		case n := <-d.events:
			d.deliver(n)
		case <-d.done:
			// Drain what was accepted before Close.
			for {
				select {
				case n := <-d.events:
					d.deliver(n)
				default:
					return
				}
			}
		}
	}
}

// deliver hands n to every sink. Sink failures are logged and not retried.
func (d *Dispatcher) deliver(n models.Notification) {
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		err := sink.Send(ctx, n)
		cancel()
		if err != nil {
			d.logger.WithError(err).WithFields(logrus.Fields{
				"sink": sink.Name(),
				"unit": n.UnitLabel,
			}).Error("Failed to deliver notification")
		}
	}
}

// Close stops accepting events, delivers the ones already queued and waits for
// the worker to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.done)
	d.mu.Unlock()

	d.wg.Wait()
}

// Len returns the number of events waiting for delivery.
func (d *Dispatcher) Len() int {
	return len(d.events)
}
