package x402

import (
	"fmt"
	"math/big"
	"sync"
	"time"
)

// RateLimits defines rate limiting for outgoing payments
type RateLimits struct {
	MaxPaymentsPerMinute int
	MaxAmountPerHour     string
}

// BudgetManager enforces client-side spending limits. A Client consults it
// between parsing a challenge and signing, so a denial costs no signature
// and no retry.
type BudgetManager struct {
	mu               sync.RWMutex
	maxPaymentAmount *big.Int
	maxHourlyAmount  *big.Int
	rateLimits       *RateLimits

	payments        []paymentRecord
	hourlySpent     *big.Int
	hourlyResetTime time.Time
	minuteCount     int
	minuteResetTime time.Time
}

type paymentRecord struct {
	timestamp time.Time
	amount    *big.Int
	url       string
}

// NewBudgetManager creates a budget manager. maxPaymentAmount caps a single
// payment in minor units; empty means uncapped.
func NewBudgetManager(maxPaymentAmount string, rateLimits *RateLimits) (*BudgetManager, error) {
	var maxAmount *big.Int
	if maxPaymentAmount != "" {
		maxAmount = new(big.Int)
		if _, ok := maxAmount.SetString(maxPaymentAmount, 10); !ok {
			return nil, fmt.Errorf("invalid max payment amount: %s", maxPaymentAmount)
		}
		if maxAmount.Sign() <= 0 {
			return nil, fmt.Errorf("max payment amount must be positive: %s", maxPaymentAmount)
		}
	}

	var maxHourly *big.Int
	if rateLimits != nil && rateLimits.MaxAmountPerHour != "" {
		maxHourly = new(big.Int)
		if _, ok := maxHourly.SetString(rateLimits.MaxAmountPerHour, 10); !ok {
			return nil, fmt.Errorf("invalid max hourly amount: %s", rateLimits.MaxAmountPerHour)
		}
		if maxHourly.Sign() <= 0 {
			return nil, fmt.Errorf("max hourly amount must be positive: %s", rateLimits.MaxAmountPerHour)
		}
	}

	return &BudgetManager{
		maxPaymentAmount: maxAmount,
		maxHourlyAmount:  maxHourly,
		rateLimits:       rateLimits,
		hourlySpent:      big.NewInt(0),
		hourlyResetTime:  time.Now().Add(time.Hour),
		minuteResetTime:  time.Now().Add(time.Minute),
	}, nil
}

// CanSpend checks whether a payment fits within the configured limits
func (bm *BudgetManager) CanSpend(amount *big.Int, url string) error {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	now := time.Now()

	if bm.maxPaymentAmount != nil && amount.Cmp(bm.maxPaymentAmount) > 0 {
		return ErrAmountExceedsLimit
	}

	if bm.rateLimits != nil {
		if !now.Before(bm.hourlyResetTime) {
			bm.hourlySpent = big.NewInt(0)
			bm.hourlyResetTime = now.Add(time.Hour)
		}
		if !now.Before(bm.minuteResetTime) {
			bm.minuteCount = 0
			bm.minuteResetTime = now.Add(time.Minute)
		}

		if bm.rateLimits.MaxPaymentsPerMinute > 0 && bm.minuteCount >= bm.rateLimits.MaxPaymentsPerMinute {
			return ErrRateLimitExceeded
		}

		if bm.maxHourlyAmount != nil {
			newTotal := new(big.Int).Add(bm.hourlySpent, amount)
			if newTotal.Cmp(bm.maxHourlyAmount) > 0 {
				return ErrBudgetExceeded
			}
		}
	}

	return nil
}

// RecordPayment records an authorized payment against the budget
func (bm *BudgetManager) RecordPayment(amount *big.Int, url string) {
	bm.mu.Lock()
	defer bm.mu.Unlock()

	now := time.Now()
	bm.payments = append(bm.payments, paymentRecord{
		timestamp: now,
		amount:    new(big.Int).Set(amount),
		url:       url,
	})

	if bm.rateLimits != nil {
		bm.minuteCount++
		bm.hourlySpent.Add(bm.hourlySpent, amount)
	}

	// Keep only the last 24 hours of records
	cutoff := now.Add(-24 * time.Hour)
	for i, p := range bm.payments {
		if p.timestamp.After(cutoff) {
			bm.payments = bm.payments[i:]
			break
		}
	}
}

// BudgetMetrics contains spending metrics
type BudgetMetrics struct {
	TotalSpent   string
	HourlySpent  string
	PaymentCount int
	MinuteCount  int
}

// Metrics returns current spending metrics
func (bm *BudgetManager) Metrics() BudgetMetrics {
	bm.mu.RLock()
	defer bm.mu.RUnlock()

	total := big.NewInt(0)
	for _, p := range bm.payments {
		total.Add(total, p.amount)
	}

	return BudgetMetrics{
		TotalSpent:   total.String(),
		HourlySpent:  bm.hourlySpent.String(),
		PaymentCount: len(bm.payments),
		MinuteCount:  bm.minuteCount,
	}
}
