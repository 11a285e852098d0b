package payments

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"landlordpay/server/internal/database"
	"landlordpay/server/internal/ledger"
	"landlordpay/server/internal/models"
	"landlordpay/server/internal/units"
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []models.Notification
}

func (r *recordingNotifier) Publish(n models.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, n)
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

type fixture struct {
	db       *database.Database
	svc      *Service
	notifier *recordingNotifier
	property *models.Property
	tenant   *models.Tenant
}

func setup(t *testing.T, rent, balance string) *fixture {
	t.Helper()
	db, err := database.NewTestDB(t.Name())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	p, err := database.NewProperty(database.PropertyInput{
		Name:        "Baraka Court",
		Location:    "Ruaka",
		Type:        models.PropertyTypeFlat,
		Layout:      units.Layout{Floors: 2, UnitsPerFloor: 2},
		DefaultRent: decimal.RequireFromString(rent),
	})
	require.NoError(t, err)
	require.NoError(t, db.CreateProperty(ctx, p))

	unit, err := db.GetUnitByLabel(ctx, p.ID, "101")
	require.NoError(t, err)

	bal := decimal.RequireFromString(balance)
	tenant := &models.Tenant{
		PropertyID:    p.ID,
		UnitID:        unit.ID,
		Name:          "Wanjiku",
		Phone:         "+254711000000",
		RentAmount:    unit.Rent,
		Balance:       bal,
		PaymentStatus: ledger.DeriveStatus(bal, unit.Rent),
	}
	require.NoError(t, db.CreateTenant(ctx, tenant, ""))

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	notifier := &recordingNotifier{}
	svc := NewService(db, notifier, logger)
	svc.now = func() time.Time { return time.Date(2026, time.October, 5, 9, 0, 0, 0, time.UTC) }

	return &fixture{db: db, svc: svc, notifier: notifier, property: p, tenant: tenant}
}

func (f *fixture) callback(receipt, amount string) Callback {
	return Callback{
		Amount:           decimal.RequireFromString(amount),
		AccountReference: f.property.ID + "-101",
		ReceiptID:        receipt,
	}
}

func TestRecordManualPayment(t *testing.T) {
	tests := []struct {
		name        string
		rent        string
		balance     string
		amount      string
		wantBalance string
		wantStatus  ledger.Status
		wantFull    bool
	}{
		{"overpayment clamps to zero", "1000", "500", "700", "0", ledger.StatusPaid, true},
		{"partial payment", "1000", "500", "200", "300", ledger.StatusPartial, false},
		{"exact payment", "1000", "1000", "1000", "0", ledger.StatusPaid, true},
		{"payment against arrears", "1000", "2500", "1000", "1500", ledger.StatusUnpaid, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.rent, tt.balance)

			receipt, err := f.svc.RecordManualPayment(context.Background(), f.tenant.ID, decimal.RequireFromString(tt.amount))
			require.NoError(t, err)

			assert.True(t, receipt.Tenant.Balance.Equal(decimal.RequireFromString(tt.wantBalance)), receipt.Tenant.Balance.String())
			assert.Equal(t, tt.wantStatus, receipt.Tenant.PaymentStatus)
			assert.Equal(t, tt.wantFull, receipt.Payment.IsFullPayment)
			assert.Equal(t, models.MethodManual, receipt.Payment.Method)
			assert.Equal(t, models.PaymentSuccess, receipt.Payment.Status)
			assert.Nil(t, receipt.Payment.ReceiptID)
			assert.True(t, receipt.Payment.Amount.Equal(decimal.RequireFromString(tt.amount)))

			stored, err := f.db.GetTenant(context.Background(), f.tenant.ID)
			require.NoError(t, err)
			assert.True(t, stored.Balance.Equal(receipt.Tenant.Balance))
			assert.Equal(t, int64(2), stored.RowVersion)

			assert.Equal(t, 1, f.notifier.count())
			n := f.notifier.events[0]
			assert.Equal(t, models.NotificationPayment, n.Type)
			assert.Equal(t, "Wanjiku", n.TenantName)
			assert.Equal(t, "101", n.UnitLabel)
			assert.True(t, n.NewBalance.Equal(receipt.Tenant.Balance))
		})
	}
}

func TestRecordManualPayment_Overpayment(t *testing.T) {
	f := setup(t, "1000", "500")
	receipt, err := f.svc.RecordManualPayment(context.Background(), f.tenant.ID, decimal.NewFromInt(700))
	require.NoError(t, err)
	assert.True(t, receipt.Overpayment.Equal(decimal.NewFromInt(200)))
	assert.True(t, receipt.Tenant.Balance.IsZero())
}

func TestRecordManualPayment_Rejections(t *testing.T) {
	f := setup(t, "1000", "1000")
	ctx := context.Background()

	for _, amount := range []string{"0", "-50"} {
		_, err := f.svc.RecordManualPayment(ctx, f.tenant.ID, decimal.RequireFromString(amount))
		assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
		assert.False(t, IsRetryable(err))
	}

	_, err := f.svc.RecordManualPayment(ctx, "no-such-tenant", decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.db.ArchiveTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	_, err = f.svc.RecordManualPayment(ctx, f.tenant.ID, decimal.NewFromInt(100))
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	payments, err := f.db.ListTenantPayments(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
	assert.Equal(t, 0, f.notifier.count())
}

func TestRecordManualPayment_StoreUnavailable(t *testing.T) {
	f := setup(t, "1000", "1000")
	require.NoError(t, f.db.Close())

	_, err := f.svc.RecordManualPayment(context.Background(), f.tenant.ID, decimal.NewFromInt(100))
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.Equal(t, 0, f.notifier.count())
}

func TestApplyExternalCallback(t *testing.T) {
	f := setup(t, "10000", "10000")
	ctx := context.Background()

	receipt, err := f.svc.ApplyExternalCallback(ctx, f.callback("QKA1B2C3D4", "4000"))
	require.NoError(t, err)
	assert.True(t, receipt.Tenant.Balance.Equal(decimal.NewFromInt(6000)))
	assert.Equal(t, ledger.StatusPartial, receipt.Tenant.PaymentStatus)
	assert.Equal(t, models.MethodMpesa, receipt.Payment.Method)
	require.NotNil(t, receipt.Payment.ReceiptID)
	assert.Equal(t, "QKA1B2C3D4", *receipt.Payment.ReceiptID)
	assert.Equal(t, "101", receipt.Payment.UnitLabel)
	assert.Equal(t, 1, f.notifier.count())
}

func TestApplyExternalCallback_DuplicateReceipt(t *testing.T) {
	f := setup(t, "10000", "10000")
	ctx := context.Background()
	cb := f.callback("QKDUPLICATE", "2500")

	_, err := f.svc.ApplyExternalCallback(ctx, cb)
	require.NoError(t, err)

	_, err = f.svc.ApplyExternalCallback(ctx, cb)
	assert.ErrorIs(t, err, ledger.ErrDuplicateReceipt)
	assert.False(t, IsRetryable(err))

	tenant, err := f.db.GetTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, tenant.Balance.Equal(decimal.NewFromInt(7500)))

	payments, err := f.db.ListTenantPayments(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Len(t, payments, 1)
	assert.Equal(t, 1, f.notifier.count())
}

func TestApplyExternalCallback_Rejections(t *testing.T) {
	f := setup(t, "10000", "10000")
	ctx := context.Background()

	tests := []struct {
		name    string
		cb      Callback
		wantErr error
	}{
		{
			name:    "gateway failure",
			cb:      Callback{ResultCode: 1032, ResultDesc: "Request cancelled by user", AccountReference: "garbage"},
			wantErr: ledger.ErrPaymentFailed,
		},
		{
			name:    "no delimiter",
			cb:      Callback{Amount: decimal.NewFromInt(100), AccountReference: "101", ReceiptID: "R1"},
			wantErr: ledger.ErrReferenceParse,
		},
		{
			name:    "missing receipt",
			cb:      Callback{Amount: decimal.NewFromInt(100), AccountReference: f.property.ID + "-101"},
			wantErr: ledger.ErrReferenceParse,
		},
		{
			name:    "zero amount",
			cb:      Callback{Amount: decimal.Zero, AccountReference: f.property.ID + "-101", ReceiptID: "R2"},
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name:    "label outside layout",
			cb:      f.callback("R3", "100").withReference(f.property.ID + "-301"),
			wantErr: ledger.ErrNotFound,
		},
		{
			name:    "vacant unit",
			cb:      f.callback("R4", "100").withReference(f.property.ID + "-G1"),
			wantErr: ledger.ErrNotFound,
		},
		{
			name:    "unknown property",
			cb:      f.callback("R5", "100").withReference("6f1c2d3e-0000-4000-8000-000000000000-101"),
			wantErr: ledger.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ApplyExternalCallback(ctx, tt.cb)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.False(t, IsRetryable(err))
		})
	}

	payments, err := f.db.ListTenantPayments(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)
	assert.Equal(t, 0, f.notifier.count())
}

func (c Callback) withReference(ref string) Callback {
	c.AccountReference = ref
	return c
}

func TestApplyExternalCallback_ArchivedTenant(t *testing.T) {
	f := setup(t, "10000", "10000")
	ctx := context.Background()

	_, err := f.db.ArchiveTenant(ctx, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.svc.ApplyExternalCallback(ctx, f.callback("QKARCHIVED", "1000"))
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestApplyExternalCallback_RedeliveredAfterArchive(t *testing.T) {
	f := setup(t, "10000", "10000")
	ctx := context.Background()

	_, err := f.svc.ApplyExternalCallback(ctx, f.callback("QKLATE", "4000"))
	require.NoError(t, err)

	_, err = f.db.ArchiveTenant(ctx, f.tenant.ID)
	require.NoError(t, err)

	_, err = f.svc.ApplyExternalCallback(ctx, f.callback("QKLATE", "4000"))
	assert.ErrorIs(t, err, ledger.ErrDuplicateReceipt)
	assert.False(t, IsRetryable(err))
}

func TestConcurrentPaymentsSerialize(t *testing.T) {
	f := setup(t, "100000", "100000")
	ctx := context.Background()

	const workers = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				_, err = f.svc.RecordManualPayment(ctx, f.tenant.ID, decimal.NewFromInt(1000))
			} else {
				_, err = f.svc.ApplyExternalCallback(ctx, f.callback(fmt.Sprintf("QKCONC%02d", i), "1000"))
			}
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}

	tenant, err := f.db.GetTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, tenant.Balance.Equal(decimal.NewFromInt(80000)), tenant.Balance.String())
	assert.Equal(t, int64(workers+1), tenant.RowVersion)

	payments, err := f.db.ListTenantPayments(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.Len(t, payments, workers)
	assert.Equal(t, workers, f.notifier.count())
	assert.Equal(t, 0, f.svc.locks.size())
}

func TestConcurrentDuplicateCallbacks(t *testing.T) {
	f := setup(t, "10000", "10000")
	ctx := context.Background()
	cb := f.callback("QKSAME", "3000")

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded, duplicates := 0, 0
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.ApplyExternalCallback(ctx, cb)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, ledger.ErrDuplicateReceipt) {
				duplicates++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, duplicates)

	tenant, err := f.db.GetTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, tenant.Balance.Equal(decimal.NewFromInt(7000)))
}

func TestAccrueRent(t *testing.T) {
	f := setup(t, "1000", "0")
	ctx := context.Background()

	result, err := f.svc.AccrueRent(ctx, "2026-10")
	require.NoError(t, err)
	assert.Equal(t, AccrualResult{Period: "2026-10", Charged: 1}, result)

	tenant, err := f.db.GetTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, tenant.Balance.Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, ledger.StatusUnpaid, tenant.PaymentStatus)

	// Same period again charges nothing
	result, err = f.svc.AccrueRent(ctx, "2026-10")
	require.NoError(t, err)
	assert.Equal(t, AccrualResult{Period: "2026-10", Skipped: 1}, result)

	// Default period comes from the clock
	result, err = f.svc.AccrueRent(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-10", result.Period)
	assert.Equal(t, 1, result.Skipped)

	result, err = f.svc.AccrueRent(ctx, "2026-11")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Charged)

	tenant, err = f.db.GetTenant(ctx, f.tenant.ID)
	require.NoError(t, err)
	assert.True(t, tenant.Balance.Equal(decimal.NewFromInt(2000)))

	_, err = f.svc.AccrueRent(ctx, "October")
	assert.Error(t, err)
}

func TestAccrueThenPay(t *testing.T) {
	f := setup(t, "1000", "0")
	ctx := context.Background()

	_, err := f.svc.AccrueRent(ctx, "2026-10")
	require.NoError(t, err)

	receipt, err := f.svc.RecordManualPayment(ctx, f.tenant.ID, decimal.NewFromInt(400))
	require.NoError(t, err)
	assert.True(t, receipt.Tenant.Balance.Equal(decimal.NewFromInt(600)))
	assert.Equal(t, ledger.StatusPartial, receipt.Tenant.PaymentStatus)
	assert.Equal(t, int64(3), receipt.Tenant.RowVersion)
}
