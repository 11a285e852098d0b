package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"landlordpay/server/internal/payments"
)

// JobType represents the different scheduled ledger jobs
type JobType int

const (
	JobTypeRentAccrual JobType = iota
)

// String returns the string representation of a JobType
func (j JobType) String() string {
	switch j {
	case JobTypeRentAccrual:
		return "rent_accrual"
	default:
		return "unknown"
	}
}

// RentAccruer charges rent for a billing period.
type RentAccruer interface {
	AccrueRent(ctx context.Context, period string) (payments.AccrualResult, error)
}

// Scheduler runs periodic ledger jobs on a UTC cron schedule
type Scheduler struct {
	accruer  RentAccruer
	logger   *logrus.Logger
	cron     *cron.Cron
	ctx      context.Context
	cancel   context.CancelFunc
	jobMutex sync.Mutex // Ensures sequential job execution
	now      func() time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(accruer RentAccruer, logger *logrus.Logger) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		accruer: accruer,
		logger:  logger,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		ctx:     ctx,
		cancel:  cancel,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ScheduleRentAccrual registers the accrual job with a five-field cron spec.
func (s *Scheduler) ScheduleRentAccrual(spec string) error {
	_, err := s.cron.AddFunc(spec, s.RunRentAccrual)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"job_type": JobTypeRentAccrual.String(),
		"schedule": spec,
	}).Info("Scheduled job")
	return nil
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.cron.Start()
}

// RunRentAccrual charges rent for the current period. Runs never overlap.
func (s *Scheduler) RunRentAccrual() {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	period := payments.Period(s.now())
	fields := logrus.Fields{
		"job_type": JobTypeRentAccrual.String(),
		"period":   period,
	}
	s.logger.WithFields(fields).Info("Starting scheduled job")

	result, err := s.accruer.AccrueRent(s.ctx, period)
	if err != nil {
		s.logger.WithError(err).WithFields(fields).Error("Scheduled job failed")
		return
	}
	s.logger.WithFields(fields).WithField("charged", result.Charged).Info("Scheduled job completed successfully")
}

// Stop gracefully stops the scheduler, waiting for a running job to finish
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
}
