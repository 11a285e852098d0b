package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/payments"
)

var (
	ErrQueueFull   = errors.New("queue is full")
	ErrQueueClosed = errors.New("queue is closed")
)

// Item is a gateway callback whose reconciliation failed for a store reason.
type Item struct {
	Callback   payments.Callback
	EnqueuedAt time.Time
	LastError  string
}

// CallbackQueue represents an in-memory queue of callbacks awaiting a retry
type CallbackQueue struct {
	items    chan Item
	done     chan struct{}
	maxSize  int
	closed   bool
	mu       sync.RWMutex
	logger   *logrus.Logger
	handlers []func(Item) error
}

// NewCallbackQueue creates a new callback queue with the specified buffer size
func NewCallbackQueue(bufferSize int, logger *logrus.Logger) *CallbackQueue {
	return &CallbackQueue{
		items:    make(chan Item, bufferSize),
		done:     make(chan struct{}),
		maxSize:  bufferSize,
		logger:   logger,
		handlers: make([]func(Item) error, 0),
	}
}

// Push adds a callback to the queue
func (q *CallbackQueue) Push(item Item) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return ErrQueueClosed
	}

	if item.EnqueuedAt.IsZero() {
		item.EnqueuedAt = time.Now().UTC()
	}

	// Non-blocking send so the gateway is always acknowledged promptly
	select {
	case q.items <- item:
		q.logger.WithField("receipt", item.Callback.ReceiptID).Debug("Queued callback for retry")
		return nil
	default:
		return ErrQueueFull
	}
}

// Subscribe adds a handler function that will be called for each item
func (q *CallbackQueue) Subscribe(handler func(Item) error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers = append(q.handlers, handler)
}

// Start begins processing items in the queue
func (q *CallbackQueue) Start() {
	go q.process()
}

// process handles the queue processing loop
func (q *CallbackQueue) process() {
	for {
		select {
		case <-q.done:
			return
		case item := <-q.items:
			q.processItem(item)
		}
	}
}

// processItem sends the item to all subscribed handlers
func (q *CallbackQueue) processItem(item Item) {
	q.mu.RLock()
	handlers := q.handlers
	q.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(item); err != nil {
			q.logger.WithError(err).WithField("receipt", item.Callback.ReceiptID).Error("Handler failed to process callback")
		}
	}
}

// Close stops the queue and prevents new items from being added. Callbacks still
// waiting for a retry are logged one by one so they can be reconciled by hand.
func (q *CallbackQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}

	q.closed = true
	close(q.done)

	for {
		select {
		case item := <-q.items:
			q.logger.WithFields(logrus.Fields{
				"receipt":     item.Callback.ReceiptID,
				"reference":   item.Callback.AccountReference,
				"amount":      item.Callback.Amount.String(),
				"checkout_id": item.Callback.CheckoutID,
				"enqueued_at": item.EnqueuedAt,
				"last_error":  item.LastError,
			}).Error("Dropped pending callback retry at shutdown")
		default:
			return nil
		}
	}
}

// Len returns the current number of callbacks in the queue
func (q *CallbackQueue) Len() int {
	return len(q.items)
}

// IsClosed returns whether the queue has been closed
func (q *CallbackQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
