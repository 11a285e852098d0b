package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidAmount    = errors.New("invalid payment amount")
	ErrReferenceParse   = errors.New("unparseable payment reference")
	ErrDuplicateReceipt = errors.New("duplicate payment receipt")
	ErrPaymentFailed    = errors.New("payment failed at gateway")
	ErrConflict         = errors.New("too much contention updating tenant")
)

// Status is the display payment status of a tenant. Balance stays the source of truth.
type Status string

const (
	StatusUnpaid  Status = "unpaid"
	StatusPartial Status = "partial"
	StatusPaid    Status = "paid"
)

// Result is the outcome of applying one payment to a tenant balance.
type Result struct {
	OldBalance    decimal.Decimal
	NewBalance    decimal.Decimal
	IsFullPayment bool
	Status        Status
	// Overpayment is the part of the amount that exceeded the outstanding balance.
	// It is not carried forward as credit.
	Overpayment decimal.Decimal
}

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount.String())
	}
	return nil
}

// Apply reduces balance by amount, clamping at zero.
func Apply(balance, rent, amount decimal.Decimal) (Result, error) {
	if err := ValidateAmount(amount); err != nil {
		return Result{}, err
	}

	newBalance := balance.Sub(amount)
	overpayment := decimal.Zero
	if newBalance.IsNegative() {
		overpayment = newBalance.Neg()
		newBalance = decimal.Zero
	}

	return Result{
		OldBalance:    balance,
		NewBalance:    newBalance,
		IsFullPayment: newBalance.IsZero(),
		Status:        DeriveStatus(newBalance, rent),
		Overpayment:   overpayment,
	}, nil
}

// DeriveStatus maps a balance to the tenant's display status.
func DeriveStatus(balance, rent decimal.Decimal) Status {
	switch {
	case !balance.IsPositive():
		return StatusPaid
	case balance.LessThan(rent):
		return StatusPartial
	default:
		return StatusUnpaid
	}
}

// Charge adds a rent charge to the balance and returns the new balance and status.
func Charge(balance, rent, amount decimal.Decimal) (decimal.Decimal, Status) {
	newBalance := balance.Add(amount)
	return newBalance, DeriveStatus(newBalance, rent)
}
