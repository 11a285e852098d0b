package payments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
)

const defaultMaxAttempts = 3

// errStale signals that another writer bumped the tenant's row version first.
var errStale = errors.New("tenant row version changed")

// Notifier receives payment events after they are committed.
type Notifier interface {
	Publish(n models.Notification)
}

// Receipt is the committed outcome of a reconciliation.
type Receipt struct {
	Payment     models.Payment  `json:"payment"`
	Tenant      models.Tenant   `json:"tenant"`
	Overpayment decimal.Decimal `json:"overpayment"`
}

// Service applies payments and rent charges to tenant balances.
type Service struct {
	db          *database.Database
	notifier    Notifier
	logger      *logrus.Logger
	locks       *tenantLocks
	maxAttempts int
	now         func() time.Time
}

func NewService(db *database.Database, notifier Notifier, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Service{
		db:          db,
		notifier:    notifier,
		logger:      logger,
		locks:       newTenantLocks(),
		maxAttempts: defaultMaxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// IsRetryable reports whether err came from the store rather than from a
// rejection of the payment itself. Retrying a rejection can never succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ledger.ErrNotFound,
		ledger.ErrInvalidAmount,
		ledger.ErrReferenceParse,
		ledger.ErrDuplicateReceipt,
		ledger.ErrPaymentFailed,
		context.Canceled,
	} {
		if errors.Is(err, target) {
			return false
		}
	}
	return true
}

// RecordManualPayment applies a payment entered by the landlord.
func (s *Service) RecordManualPayment(ctx context.Context, tenantID string, amount decimal.Decimal) (*Receipt, error) {
	if err := ledger.ValidateAmount(amount); err != nil {
		return nil, err
	}
	return s.reconcile(ctx, reconcileRequest{
		tenantID: tenantID,
		amount:   amount,
		method:   models.MethodManual,
	})
}

// ApplyExternalCallback applies a gateway callback. Failed pushes are rejected
// before anything is looked up.
func (s *Service) ApplyExternalCallback(ctx context.Context, cb Callback) (*Receipt, error) {
	if !cb.Succeeded() {
		return nil, fmt.Errorf("%w: result code %d: %s", ledger.ErrPaymentFailed, cb.ResultCode, cb.ResultDesc)
	}
	if err := ledger.ValidateAmount(cb.Amount); err != nil {
		return nil, err
	}
	if cb.ReceiptID == "" {
		return nil, fmt.Errorf("%w: callback has no receipt number", ledger.ErrReferenceParse)
	}

	// A redelivery stays a duplicate even if the unit or tenant changed since.
	// The check is repeated inside the transaction, where it is authoritative.
	seen, err := s.db.HasReceipt(ctx, cb.ReceiptID)
	if err != nil {
		return nil, err
	}
	if seen {
		return nil, fmt.Errorf("receipt %s: %w", cb.ReceiptID, ledger.ErrDuplicateReceipt)
	}

	propertyID, label, err := ParseReference(cb.AccountReference)
	if err != nil {
		return nil, err
	}
	unit, tenant, err := s.db.FindUnitTenant(ctx, propertyID, label)
	if err != nil {
		return nil, err
	}

	receiptID := cb.ReceiptID
	return s.reconcile(ctx, reconcileRequest{
		tenantID:  tenant.ID,
		unitID:    unit.ID,
		amount:    cb.Amount,
		method:    models.MethodMpesa,
		receiptID: &receiptID,
	})
}

type reconcileRequest struct {
	tenantID  string
	unitID    string
	amount    decimal.Decimal
	method    models.PaymentMethod
	receiptID *string
}

func (s *Service) reconcile(ctx context.Context, req reconcileRequest) (*Receipt, error) {
	unlock := s.locks.Lock(req.tenantID)
	defer unlock()

	var receipt Receipt
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		err := s.db.Transaction(ctx, func(tx *gorm.DB) error {
			if req.receiptID != nil {
				exists, err := database.ReceiptExists(tx, *req.receiptID)
				if err != nil {
					return err
				}
				if exists {
					return fmt.Errorf("receipt %s: %w", *req.receiptID, ledger.ErrDuplicateReceipt)
				}
			}

			tenant, err := database.LoadActiveTenant(tx, req.tenantID)
			if err != nil {
				return err
			}
			if req.unitID != "" && tenant.UnitID != req.unitID {
				return fmt.Errorf("tenant %s moved off unit %s: %w", tenant.ID, req.unitID, ledger.ErrNotFound)
			}

			result, err := ledger.Apply(tenant.Balance, tenant.RentAmount, req.amount)
			if err != nil {
				return err
			}

			expected := tenant.RowVersion
			tenant.Balance = result.NewBalance
			tenant.PaymentStatus = result.Status
			ok, err := database.UpdateTenantLedgerIfVersion(tx, &tenant, expected)
			if err != nil {
				return err
			}
			if !ok {
				return errStale
			}

			payment := models.Payment{
				TenantID:      tenant.ID,
				UnitID:        tenant.UnitID,
				UnitLabel:     tenant.UnitLabel,
				Amount:        req.amount,
				BalanceAfter:  result.NewBalance,
				IsFullPayment: result.IsFullPayment,
				Status:        models.PaymentSuccess,
				Method:        req.method,
				ReceiptID:     req.receiptID,
				PaidAt:        s.now(),
			}
			if err := database.InsertPayment(tx, &payment); err != nil {
				return err
			}

			receipt = Receipt{Payment: payment, Tenant: tenant, Overpayment: result.Overpayment}
			return nil
		})
		if errors.Is(err, errStale) {
			s.logger.WithFields(logrus.Fields{
				"tenant_id": req.tenantID,
				"attempt":   attempt + 1,
			}).Debug("Tenant updated concurrently, retrying")
			continue
		}
		if err != nil {
			return nil, err
		}

		s.committed(&receipt)
		return &receipt, nil
	}

	return nil, fmt.Errorf("tenant %s after %d attempts: %w", req.tenantID, s.maxAttempts, ledger.ErrConflict)
}

// committed logs the payment and hands the notification to the dispatcher.
func (s *Service) committed(r *Receipt) {
	fields := logrus.Fields{
		"tenant_id":   r.Tenant.ID,
		"payment_id":  r.Payment.ID,
		"unit":        r.Tenant.UnitLabel,
		"method":      r.Payment.Method,
		"amount":      r.Payment.Amount.String(),
		"new_balance": r.Tenant.Balance.String(),
	}
	if r.Overpayment.IsPositive() {
		fields["overpayment"] = r.Overpayment.String()
		s.logger.WithFields(fields).Warn("Payment exceeded outstanding balance")
	} else {
		s.logger.WithFields(fields).Info("Payment recorded")
	}

	if s.notifier == nil {
		return
	}
	s.notifier.Publish(models.Notification{
		Type: models.NotificationPayment,
		Message: fmt.Sprintf("Payment of KES %s received from %s for unit %s. Balance: KES %s",
			r.Payment.Amount.StringFixed(2), r.Tenant.Name, r.Tenant.UnitLabel, r.Tenant.Balance.StringFixed(2)),
		TenantName: r.Tenant.Name,
		Phone:      r.Tenant.Phone,
		UnitLabel:  r.Tenant.UnitLabel,
		Amount:     r.Payment.Amount,
		NewBalance: r.Tenant.Balance,
		Timestamp:  r.Payment.PaidAt,
	})
}
