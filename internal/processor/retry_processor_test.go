package processor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"landlordpay/server/config"
	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/payments"
	"landlordpay/server/internal/queue"
)

// MockApplier is a mock implementation of Applier
type MockApplier struct {
	mock.Mock
}

func (m *MockApplier) ApplyExternalCallback(ctx context.Context, cb payments.Callback) (*payments.Receipt, error) {
	args := m.Called(cb)
	receipt, _ := args.Get(0).(*payments.Receipt)
	return receipt, args.Error(1)
}

func newProcessor(applier Applier, retries int) (*RetryProcessor, *queue.CallbackQueue) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	q := queue.NewCallbackQueue(10, logger)
	cfg := config.RetryConfig{MaxRetries: retries, RetryDelay: time.Millisecond}
	return NewRetryProcessor(applier, q, cfg, logger), q
}

func testItem() queue.Item {
	return queue.Item{Callback: payments.Callback{
		Amount:           decimal.NewFromInt(500),
		AccountReference: "prop-G1",
		ReceiptID:        "QK1",
	}}
}

func TestRetryProcessor_ProcessItem(t *testing.T) {
	applier := &MockApplier{}
	p, _ := newProcessor(applier, 3)
	it := testItem()

	// Test successful processing
	applier.On("ApplyExternalCallback", it.Callback).Return(&payments.Receipt{}, nil).Once()
	assert.NoError(t, p.processItem(it))

	// Test retry on store failure
	applier.On("ApplyExternalCallback", it.Callback).Return(nil, errors.New("database is locked")).Times(3)
	err := p.processItem(it)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to apply callback after 3 attempts")
	applier.AssertExpectations(t)
}

func TestRetryProcessor_RecoversAfterFailure(t *testing.T) {
	applier := &MockApplier{}
	p, _ := newProcessor(applier, 3)
	it := testItem()

	applier.On("ApplyExternalCallback", it.Callback).Return(nil, errors.New("disk I/O error")).Once()
	applier.On("ApplyExternalCallback", it.Callback).Return(&payments.Receipt{}, nil).Once()

	assert.NoError(t, p.processItem(it))
	applier.AssertNumberOfCalls(t, "ApplyExternalCallback", 2)
}

func TestRetryProcessor_RejectionsAreFinal(t *testing.T) {
	for _, rejection := range []error{ledger.ErrDuplicateReceipt, ledger.ErrNotFound, ledger.ErrInvalidAmount} {
		t.Run(rejection.Error(), func(t *testing.T) {
			applier := &MockApplier{}
			p, _ := newProcessor(applier, 3)
			it := testItem()

			applier.On("ApplyExternalCallback", it.Callback).Return(nil, fmt.Errorf("wrapped: %w", rejection)).Once()
			assert.NoError(t, p.processItem(it))
			applier.AssertNumberOfCalls(t, "ApplyExternalCallback", 1)
		})
	}
}

func TestRetryProcessor_StartStop(t *testing.T) {
	applier := &MockApplier{}
	p, q := newProcessor(applier, 2)
	it := testItem()

	done := make(chan struct{})
	applier.On("ApplyExternalCallback", it.Callback).Return(&payments.Receipt{}, nil).Once().Run(func(mock.Arguments) {
		close(done)
	})

	p.Start()
	q.Start()
	assert.NoError(t, q.Push(it))

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("queued callback was not processed")
	}

	p.Stop()
	q.Close()
	assert.True(t, q.IsClosed())
}

func TestRetryProcessor_StopInterruptsDelay(t *testing.T) {
	applier := &MockApplier{}
	p, _ := newProcessor(applier, 5)
	p.config.RetryDelay = time.Hour
	it := testItem()

	applier.On("ApplyExternalCallback", it.Callback).Return(nil, errors.New("database is locked")).Once()
	p.Stop()
	err := p.processItem(it)
	assert.ErrorIs(t, err, context.Canceled)
}
