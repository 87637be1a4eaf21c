package customers

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/logger"
)

// FallbackSource tries Primary and, if it fails, Secondary. Context
// cancellation is never treated as a reason to fall back.
type FallbackSource struct {
	Primary   CustomerSource
	Secondary CustomerSource
}

// FetchCustomers implements CustomerSource.
func (f FallbackSource) FetchCustomers(ctx context.Context, filter domain.CustomerFilter) ([]domain.Customer, error) {
	records, err := f.Primary.FetchCustomers(ctx, filter)
	if err == nil {
		return records, nil
	}
	if f.Secondary == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	logger.Warn("primary customer source failed, using fallback", "error", err)
	records, ferr := f.Secondary.FetchCustomers(ctx, filter)
	if ferr != nil {
		return nil, fmt.Errorf("fallback source: %w (primary: %v)", ferr, err)
	}
	return records, nil
}
