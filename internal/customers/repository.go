package customers

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ignite/crm-quality/internal/domain"
)

// CustomerSource loads base customer records.
type CustomerSource interface {
	// FetchCustomers returns the records matching filter, in the source's order.
	FetchCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error)
}

// ActivitySource resolves the last time a customer was contacted or bought.
type ActivitySource interface {
	// LatestContactOrSale returns the max of the latest interaction and the
	// latest sale, or nil when there is neither.
	LatestContactOrSale(ctx context.Context, customerID string) (*time.Time, error)
}

// BalanceSource resolves unsettled receivables.
type BalanceSource interface {
	// OpenBalance returns the sum of open receivable entries, zero when none.
	OpenBalance(ctx context.Context, customerID string) (decimal.Decimal, error)
}
