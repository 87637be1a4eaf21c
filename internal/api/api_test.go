package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/crm-quality/internal/cache"
	"github.com/ignite/crm-quality/internal/calendar"
	"github.com/ignite/crm-quality/internal/customers"
	"github.com/ignite/crm-quality/internal/domain"
	"github.com/ignite/crm-quality/internal/pkg/httputil"
	"github.com/ignite/crm-quality/internal/quality"
	"github.com/ignite/crm-quality/internal/tableview"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// stubCustomers serves records and can be switched into failure.
type stubCustomers struct {
	mu      sync.Mutex
	records []domain.Customer
	err     error
}

func (s *stubCustomers) FetchCustomers(_ context.Context, f domain.CustomerFilter) ([]domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	if len(f.IDs) == 0 {
		return s.records, nil
	}
	var out []domain.Customer
	for _, c := range s.records {
		for _, id := range f.IDs {
			if c.ID == id {
				out = append(out, c)
			}
		}
	}
	return out, nil
}

func (s *stubCustomers) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

type stubLookups struct{}

func (stubLookups) LatestContactOrSale(_ context.Context, _ string) (*time.Time, error) {
	at := testNow.AddDate(0, 0, -2)
	return &at, nil
}

func (stubLookups) OpenBalance(_ context.Context, id string) (decimal.Decimal, error) {
	if id == "c-2" {
		return decimal.Zero, errors.New("ledger timeout")
	}
	return decimal.NewFromFloat(49.9), nil
}

func sampleCustomers() []domain.Customer {
	last := testNow.AddDate(0, 0, -10)
	birthday := time.Date(1990, 6, 20, 0, 0, 0, 0, time.UTC)
	return []domain.Customer{
		{
			ID:                "c-1",
			Name:              "Bruna Costa",
			Email:             domain.Ptr("bruna@example.com"),
			Phone:             domain.Ptr("+55 31 98888-1234"),
			Address:           &domain.Address{City: "Belo Horizonte", State: "MG"},
			Birthday:          &birthday,
			PurchaseFrequency: domain.Ptr("monthly"),
			FavoriteCategory:  domain.Ptr("shoes"),
			FavoriteProduct:   domain.Ptr("runner"),
			LastPurchaseDate:  &last,
			Segment:           domain.Ptr(domain.SegmentLoyalGold),
			CreatedAt:         testNow.AddDate(0, 0, -5),
		},
		{
			ID:        "c-2",
			Name:      "Ana Lima",
			Phone:     domain.Ptr("+55 11 97777-0000"),
			Segment:   domain.Ptr(domain.SegmentRegular),
			CreatedAt: testNow.AddDate(-1, 0, 0),
		},
	}
}

type fixture struct {
	source *stubCustomers
	table  *tableview.State
	router http.Handler
	store  *cache.SnapshotStore
	agg    *quality.Aggregator
	mr     *miniredis.Miniredis
	dbMock sqlmock.Sqlmock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	t.Cleanup(func() {
		client.Close()
		mr.Close()
		db.Close()
	})

	src := &stubCustomers{records: sampleCustomers()}
	clock := calendar.FixedClock(testNow)
	composer := customers.NewComposer(src, stubLookups{}, stubLookups{}, customers.Config{Clock: clock})
	table := tableview.NewState(composer, domain.CustomerFilter{}, 25)
	agg := quality.NewAggregator(composer.Catalog(), quality.Options{})
	store := cache.NewSnapshotStore(client, 10)

	router := SetupRoutes(NewHealthChecker(db, client, table), nil,
		NewCustomerAPI(table, src, composer.Catalog()),
		NewQualityAPI(agg, table, store, QualityConfig{MaxSnapshotAge: 20 * time.Minute, Clock: clock}),
	)
	return &fixture{source: src, table: table, router: router, store: store, agg: agg, mr: mr, dbMock: mock}
}

func (f *fixture) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

type qualityEnvelope struct {
	Source     string          `json:"source"`
	SnapshotID string          `json:"snapshot_id"`
	Data       json.RawMessage `json:"data"`
}

func TestCustomerTable_FirstRequestLoads(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/customers/table")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	view := decode[tableview.View](t, rec)
	assert.Equal(t, tableview.StatusReady, view.Status)
	assert.Equal(t, 2, view.Total)
	require.Len(t, view.Rows, 2)
	// default sort: last purchase newest first, absent last
	assert.Equal(t, "c-1", view.Rows[0].ID)
	assert.Equal(t, "c-2", view.Rows[1].ID)
	assert.True(t, view.Rows[1].Degraded)
	assert.Equal(t, tableview.NotAvailable, view.Rows[1].Cells[tableview.ColumnOutstanding])
}

func TestCustomerTable_QuerySettings(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/customers/table?sort=name&dir=asc")
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[tableview.View](t, rec)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "c-2", view.Rows[0].ID) // Ana before Bruna
	assert.Equal(t, tableview.SortName, view.SortKey)

	rec = f.do(t, http.MethodGet, "/api/customers/table?search=BRUNA")
	view = decode[tableview.View](t, rec)
	assert.Equal(t, 1, view.Matched)
	assert.Equal(t, "c-1", view.Rows[0].ID)

	rec = f.do(t, http.MethodGet, "/api/customers/table?search=&segment=Regular")
	view = decode[tableview.View](t, rec)
	require.Equal(t, 1, view.Matched)
	assert.Equal(t, "c-2", view.Rows[0].ID)

	rec = f.do(t, http.MethodGet, "/api/customers/table?segment=&page=2&page_size=1")
	view = decode[tableview.View](t, rec)
	assert.Equal(t, 2, view.TotalPages)
	assert.Equal(t, 2, view.Page)
	require.Len(t, view.Rows, 1)
}

func TestCustomerTable_BadQuery(t *testing.T) {
	f := newFixture(t)

	for _, path := range []string{
		"/api/customers/table?status=Sleeping",
		"/api/customers/table?last_purchase=365d",
		"/api/customers/table?birthday=year",
	} {
		rec := f.do(t, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
	}
}

func TestCustomerTable_UnknownSortKeepsLoadOrder(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/customers/table?sort=shoe_size&dir=asc")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[tableview.View](t, rec)
	require.Len(t, view.Rows, 2)
	assert.Equal(t, "c-1", view.Rows[0].ID)
	assert.Equal(t, "c-2", view.Rows[1].ID)
}

func TestCustomerTable_HugePageDoesNotBreakTable(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, fmt.Sprintf("/api/customers/table?page=%d&page_size=25", int64(math.MaxInt64/25+2)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	view := decode[tableview.View](t, rec)
	assert.Empty(t, view.Rows)
	assert.Equal(t, 1, view.TotalPages)

	// the stored page keeps serving an empty page until it is reset
	rec = f.do(t, http.MethodGet, "/api/customers/table")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/customers/table?page=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[tableview.View](t, rec).Rows, 2)
}

func TestCustomerTable_BaseFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.source.fail(errors.New("relation get_customer_table_data does not exist"))

	rec := f.do(t, http.MethodGet, "/api/customers/table")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))

	body := decode[httputil.ErrorResponse](t, rec)
	assert.Equal(t, CodeBaseFetchFailed, body.Code)
	assert.True(t, body.Retryable)
}

func TestCustomerTable_RefreshKeepsStaleRows(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/api/customers/table").Code)

	f.source.fail(errors.New("connection reset"))
	rec := f.do(t, http.MethodPost, "/api/customers/table/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	view := decode[tableview.View](t, rec)
	assert.True(t, view.Stale)
	assert.Equal(t, tableview.StatusFailed, view.Status)
	assert.Len(t, view.Rows, 2)
	assert.NotEmpty(t, view.LastError)
}

func TestCustomerTable_ToggleColumn(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPut, "/api/customers/table/columns/city/toggle")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		Visible bool               `json:"visible"`
		Columns []tableview.Column `json:"columns"`
	}](t, rec)
	assert.False(t, body.Visible)
	assert.NotContains(t, body.Columns, tableview.ColumnCity)

	view := decode[tableview.View](t, f.do(t, http.MethodGet, "/api/customers/table"))
	_, has := view.Rows[0].Cells[tableview.ColumnCity]
	assert.False(t, has)

	rec = f.do(t, http.MethodPut, "/api/customers/table/columns/shoe_size/toggle")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCustomerCompleteness(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/customers/c-2/completeness")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decode[CompletenessResponse](t, rec)
	assert.Equal(t, "c-2", body.CustomerID)
	assert.Equal(t, 20, body.Completeness.Percentage)
	assert.False(t, body.ProfileComplete)
	require.NotNil(t, body.NextField)
	assert.Equal(t, quality.FieldEmail, body.NextField.Key)
	assert.NotEmpty(t, body.Suggestions)

	rec = f.do(t, http.MethodGet, "/api/customers/c-404/completeness")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f.source.fail(errors.New("down"))
	rec = f.do(t, http.MethodGet, "/api/customers/c-1/completeness")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestQualityMetrics_LiveThenSnapshot(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/quality/metrics")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	env := decode[qualityEnvelope](t, rec)
	assert.Equal(t, SourceLive, env.Source)

	var m quality.Metrics
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, 2, m.TotalCustomers)
	assert.Equal(t, 1, m.CompleteProfiles)

	snap := cache.Snapshot{
		ID:      "snap-1",
		Catalog: f.agg.Catalog().Name(),
		TakenAt: testNow.Add(-5 * time.Minute),
		Metrics: quality.Metrics{TotalCustomers: 500},
	}
	require.NoError(t, f.store.Save(context.Background(), snap))

	env = decode[qualityEnvelope](t, f.do(t, http.MethodGet, "/api/quality/metrics"))
	assert.Equal(t, SourceSnapshot, env.Source)
	assert.Equal(t, "snap-1", env.SnapshotID)
	require.NoError(t, json.Unmarshal(env.Data, &m))
	assert.Equal(t, 500, m.TotalCustomers)
}

func TestQuality_StaleOrForeignSnapshotIgnored(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.store.Save(context.Background(), cache.Snapshot{
		ID: "old", Catalog: f.agg.Catalog().Name(), TakenAt: testNow.Add(-time.Hour),
	}))
	env := decode[qualityEnvelope](t, f.do(t, http.MethodGet, "/api/quality/alerts"))
	assert.Equal(t, SourceLive, env.Source)

	require.NoError(t, f.store.Save(context.Background(), cache.Snapshot{
		ID: "other", Catalog: quality.CatalogContactProfile, TakenAt: testNow,
	}))
	env = decode[qualityEnvelope](t, f.do(t, http.MethodGet, "/api/quality/alerts"))
	assert.Equal(t, SourceLive, env.Source)
}

func TestQuality_TrendAndIncompleteLive(t *testing.T) {
	f := newFixture(t)

	env := decode[qualityEnvelope](t, f.do(t, http.MethodGet, "/api/quality/trend"))
	var trend quality.Trend
	require.NoError(t, json.Unmarshal(env.Data, &trend))
	// c-1 is new and complete, c-2 old and sparse
	assert.Equal(t, quality.DirectionUp, trend.Direction)

	env = decode[qualityEnvelope](t, f.do(t, http.MethodGet, "/api/quality/incomplete"))
	var ranked []quality.IncompleteProfile
	require.NoError(t, json.Unmarshal(env.Data, &ranked))
	require.Len(t, ranked, 1)
	assert.Equal(t, "c-2", ranked[0].CustomerID)
	assert.Equal(t, "high", ranked[0].Priority)
}

func TestQuality_BaseFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.source.fail(errors.New("down"))

	rec := f.do(t, http.MethodGet, "/api/quality/metrics")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, CodeBaseFetchFailed, decode[httputil.ErrorResponse](t, rec).Code)
}

func TestQuality_SnapshotHistory(t *testing.T) {
	f := newFixture(t)
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, f.store.Save(context.Background(), cache.Snapshot{ID: id, TakenAt: testNow}))
	}

	rec := f.do(t, http.MethodGet, "/api/quality/snapshots?limit=2")
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[[]cache.Snapshot](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "c", history[0].ID)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.dbMock.ExpectPing()

	rec := f.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[HealthStatus](t, rec)
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, checkUp, status.Checks["database"].Status)
	assert.Equal(t, checkUp, status.Checks["redis"].Status)
	assert.NoError(t, f.dbMock.ExpectationsWereMet())
}

func TestHealth_DatabaseDown(t *testing.T) {
	f := newFixture(t)
	f.dbMock.ExpectPing().WillReturnError(errors.New("connection refused"))

	status := decode[HealthStatus](t, f.do(t, http.MethodGet, "/health"))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, checkDown, status.Checks["database"].Status)
}

func TestDetermineOverallStatus(t *testing.T) {
	assert.Equal(t, "healthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: checkUp}, "redis": {Status: checkNotConfigured},
	}))
	assert.Equal(t, "degraded", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: checkUp}, "redis": {Status: checkDown},
	}))
	assert.Equal(t, "unhealthy", determineOverallStatus(map[string]ComponentCheck{
		"database": {Status: checkDown},
	}))
}
