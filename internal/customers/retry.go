package customers

import (
	"context"

	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/logger"
	"github.com/ignite/crm-quality/internal/pkg/retry"
)

// RetrySource retries a failing base fetch under Policy before giving up.
type RetrySource struct {
	Source CustomerSource
	Policy retry.Policy
}

// FetchCustomers implements CustomerSource.
func (r RetrySource) FetchCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	var records []domain.Customer
	attempt := 0
	err := retry.Do(ctx, r.Policy, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			logger.Warn("retrying customer fetch", "attempt", attempt)
		}
		var err error
		records, err = r.Source.FetchCustomers(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
