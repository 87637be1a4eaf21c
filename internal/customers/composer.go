package customers

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ignite/crm-quality/internal/calendar"
	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/lifecycle"
	"github.com/ignite/crm-quality/internal/pkg/logger"
	"github.com/ignite/crm-quality/internal/quality"
)

// Composer defaults.
const (
	DefaultFanOut        = 8
	DefaultLookupTimeout = 2 * time.Second
)

// Lookup names used in logs.
const (
	LookupLastContact = "last_contact"
	LookupOpenBalance = "open_balance"
)

// Config tunes a Composer. Zero values take the defaults.
type Config struct {
	// FanOut caps how many rows resolve their lookups at once.
	FanOut int
	// LookupTimeout bounds each row's pair of lookups.
	LookupTimeout time.Duration
	// Location is the timezone for day counting. Nil means UTC.
	Location *time.Location
	// Catalog scores Row.Completeness. Nil means quality.DefaultCatalog().
	Catalog *quality.Catalog
	Clock   calendar.Clock
}

// Composer builds table rows. It is safe for concurrent use.
type Composer struct {
	customers CustomerSource
	activity  ActivitySource
	balances  BalanceSource
	cfg       Config
}

// NewComposer creates a composer over the three collaborators.
func NewComposer(customers CustomerSource, activity ActivitySource, balances BalanceSource, cfg Config) *Composer {
	if cfg.FanOut <= 0 {
		cfg.FanOut = DefaultFanOut
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = DefaultLookupTimeout
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Catalog == nil {
		cfg.Catalog = quality.DefaultCatalog()
	}
	if cfg.Clock == nil {
		cfg.Clock = calendar.SystemClock{}
	}
	return &Composer{customers: customers, activity: activity, balances: balances, cfg: cfg}
}

// Catalog returns the catalog rows are scored with.
func (c *Composer) Catalog() *quality.Catalog { return c.cfg.Catalog }

// Build fetches the records matching filter and composes them. A base fetch
// failure is returned as a *FetchError and yields no rows.
func (c *Composer) Build(ctx context.Context, filter domain.CustomerFilter) ([]Row, error) {
	records, err := c.customers.FetchCustomers(ctx, filter)
	if err != nil {
		logger.Error("customer base fetch failed", "error", err)
		return nil, &FetchError{Op: "fetch customers", Err: err}
	}
	return c.Compose(ctx, records)
}

// Compose turns records into rows, one per record, in input order.
//
// Lookup failures never fail the batch. If ctx is cancelled, every row is
// still returned, rows whose lookups did not finish are marked degraded, and
// ctx.Err() is returned alongside them.
func (c *Composer) Compose(ctx context.Context, records []domain.Customer) ([]Row, error) {
	now := c.cfg.Clock.Now()
	rows := make([]Row, len(records))
	for i := range records {
		rows[i] = c.baseRow(records[i], now)
	}

	g := new(errgroup.Group)
	g.SetLimit(c.cfg.FanOut)
	for i := range rows {
		if ctx.Err() != nil {
			markUnresolved(rows[i:])
			break
		}
		row := &rows[i]
		g.Go(func() error {
			c.resolveAncillary(ctx, row, now)
			return nil
		})
	}
	_ = g.Wait()

	return rows, ctx.Err()
}

// baseRow derives everything that needs no I/O.
func (c *Composer) baseRow(rec domain.Customer, now time.Time) Row {
	loc := c.cfg.Location
	cls := lifecycle.ClassifyCustomer(rec, now, loc)
	res := c.cfg.Catalog.Score(rec)

	row := Row{
		ID:                  rec.ID,
		Name:                textOr(&rec.Name, UnnamedCustomer),
		Email:               rec.Email,
		Phone:               rec.Phone,
		Segment:             textOr(rec.Segment, domain.SegmentNew),
		FavoriteCategory:    textOr(rec.FavoriteCategory, UndefinedFavoriteCategory),
		ContactPreference:   rec.ContactPreference,
		ContactPermission:   rec.ContactPermission != nil && *rec.ContactPermission,
		LastPurchaseAt:      rec.LastPurchaseDate,
		Status:              cls.Status,
		StatusColor:         cls.Color,
		StatusRule:          cls.Rule,
		Completeness:        res,
		ProfileCompleteness: quality.ContactProfileCatalog().Score(rec).Percentage,
		OutstandingAmount:   decimal.Zero,
		CreatedAt:           rec.CreatedAt,
		UpdatedAt:           rec.UpdatedAt,
		Record:              rec,
	}
	if city := CityOf(rec.Address); city != "" {
		row.City = &city
	}
	if days, ok := calendar.RecencyInDays(rec.LastPurchaseDate, now, loc); ok {
		row.DaysSinceLastPurchase = &days
	}
	if occ, ok := calendar.NextAnnualOccurrence(rec.Birthday, now, loc); ok {
		row.NextAnniversary = &occ.Date
		row.DaysUntilAnniversary = &occ.DaysUntil
	}
	return row
}

type contactResult struct {
	at  *time.Time
	err error
}

type balanceResult struct {
	amount decimal.Decimal
	err    error
}

// resolveAncillary runs both lookups for one row concurrently under the
// per-row timeout. Each failure degrades only its own cells. A lookup still
// running when the timeout or ctx fires is abandoned and counts as failed.
func (c *Composer) resolveAncillary(ctx context.Context, row *Row, now time.Time) {
	lctx, cancel := context.WithTimeout(ctx, c.cfg.LookupTimeout)
	defer cancel()

	id := row.ID
	contactCh := make(chan contactResult, 1)
	balanceCh := make(chan balanceResult, 1)
	go func() {
		at, err := c.activity.LatestContactOrSale(lctx, id)
		contactCh <- contactResult{at: at, err: err}
	}()
	go func() {
		amount, err := c.balances.OpenBalance(lctx, id)
		balanceCh <- balanceResult{amount: amount, err: err}
	}()

	var (
		lastAt     *time.Time
		balance    decimal.Decimal
		contactErr error
		balanceErr error
	)
wait:
	for pending := 2; pending > 0; pending-- {
		select {
		case res := <-contactCh:
			lastAt, contactErr = res.at, res.err
			contactCh = nil
		case res := <-balanceCh:
			balance, balanceErr = res.amount, res.err
			balanceCh = nil
		case <-lctx.Done():
			if contactCh != nil {
				contactErr = lctx.Err()
			}
			if balanceCh != nil {
				balanceErr = lctx.Err()
			}
			break wait
		}
	}

	if contactErr != nil {
		row.ContactLookupFailed = true
		logger.Warn("ancillary lookup failed", "customer_id", row.ID, "lookup", LookupLastContact, "error", contactErr)
	} else if lastAt != nil && !lastAt.IsZero() {
		row.LastContactAt = lastAt
		if days, ok := calendar.RecencyInDays(lastAt, now, c.cfg.Location); ok {
			row.DaysSinceContact = &days
		}
	}

	if balanceErr != nil {
		row.BalanceLookupFailed = true
		logger.Warn("ancillary lookup failed", "customer_id", row.ID, "lookup", LookupOpenBalance, "error", balanceErr)
	} else {
		row.OutstandingAmount = balance
	}
}

func markUnresolved(rows []Row) {
	for i := range rows {
		rows[i].ContactLookupFailed = true
		rows[i].BalanceLookupFailed = true
	}
}

func textOr(s *string, fallback string) string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return fallback
	}
	return *s
}
