package postgres

import (
	"database/sql"

	"github.com/ignite/crm-quality/internal/customers"
)

// StrategyTableFunctionWithFallback tries the table function and falls back
// to the direct query when it fails.
const StrategyTableFunctionWithFallback QueryStrategy = "table_function_with_fallback"

// NewCustomerSource builds the base record source for a configured strategy.
// Unknown names get the fallback pair.
func NewCustomerSource(db *sql.DB, strategy string) customers.CustomerSource {
	switch QueryStrategy(strategy) {
	case StrategyDirect:
		return NewCustomerRepo(db, StrategyDirect)
	case StrategyTableFunction:
		return NewCustomerRepo(db, StrategyTableFunction)
	default:
		return &customers.FallbackSource{
			Primary:   NewCustomerRepo(db, StrategyTableFunction),
			Secondary: NewCustomerRepo(db, StrategyDirect),
		}
	}
}
