package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"landlordpay/server/config"
	"landlordpay/server/internal/payments"
	"landlordpay/server/internal/queue"
)

// Applier reconciles a gateway callback.
type Applier interface {
	ApplyExternalCallback(ctx context.Context, cb payments.Callback) (*payments.Receipt, error)
}

// RetryProcessor re-applies callbacks that failed on a store error
type RetryProcessor struct {
	applier Applier
	logger  *logrus.Logger
	config  config.RetryConfig
	queue   *queue.CallbackQueue
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewRetryProcessor creates a new retry processor instance
func NewRetryProcessor(applier Applier, q *queue.CallbackQueue, cfg config.RetryConfig, logger *logrus.Logger) *RetryProcessor {
	ctx, cancel := context.WithCancel(context.Background())
	return &RetryProcessor{
		applier: applier,
		queue:   q,
		config:  cfg,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start subscribes the processor to the queue
func (p *RetryProcessor) Start() {
	p.queue.Subscribe(p.processItem)
}

// Stop cancels retries in progress
func (p *RetryProcessor) Stop() {
	p.cancel()
}

// processItem applies one callback, retrying store failures with a fixed delay.
// Rejections such as duplicates or unknown units are final and are not retried.
func (p *RetryProcessor) processItem(item queue.Item) error {
	fields := logrus.Fields{
		"receipt":   item.Callback.ReceiptID,
		"reference": item.Callback.AccountReference,
	}

	var err error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		if attempt > 1 {
			p.logger.WithFields(fields).Infof("Retrying callback, attempt %d of %d", attempt, p.config.MaxRetries)
			select {
			case <-p.ctx.Done():
				return p.ctx.Err()
			case <-time.After(p.config.RetryDelay):
			}
		}

		_, err = p.applier.ApplyExternalCallback(p.ctx, item.Callback)
		if err == nil {
			p.logger.WithFields(fields).Info("Successfully applied queued callback")
			return nil
		}
		if !payments.IsRetryable(err) {
			p.logger.WithError(err).WithFields(fields).Warn("Queued callback rejected")
			return nil
		}

		p.logger.WithError(err).WithFields(fields).Error("Callback processing failed")
	}

	return fmt.Errorf("failed to apply callback after %d attempts: %w", p.config.MaxRetries, err)
}
