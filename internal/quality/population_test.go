package quality

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/crm-quality/internal/domain"
)

func withoutFields(c domain.Customer, keys ...FieldKey) domain.Customer {
	for _, k := range keys {
		switch k {
		case FieldEmail:
			c.Email = nil
		case FieldPhone:
			c.Phone = nil
		case FieldBirthday:
			c.Birthday = nil
		case FieldAddress:
			c.Address = nil
		case FieldPurchaseFrequency:
			c.PurchaseFrequency = nil
		case FieldFavoriteCategory:
			c.FavoriteCategory = nil
		case FieldFavoriteProduct:
			c.FavoriteProduct = nil
		}
	}
	return c
}

func repeat(c domain.Customer, n int) []domain.Customer {
	out := make([]domain.Customer, n)
	for i := range out {
		out[i] = c
	}
	return out
}

func TestAggregate_Empty(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	m := agg.Aggregate(nil)

	assert.Equal(t, 0, m.TotalCustomers)
	assert.Equal(t, 0, m.AverageCompleteness)
	assert.Empty(t, m.TopMissingFields)
	assert.NotNil(t, m.TopMissingFields)
	assert.Empty(t, agg.Alerts(m))
}

func TestAggregate_Counts(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	records := []domain.Customer{
		fullCustomer(), // 100
		withoutFields(fullCustomer(), FieldFavoriteProduct),   // 93
		withoutFields(fullCustomer(), FieldBirthday),          // 85
		withoutFields(fullCustomer(), FieldEmail, FieldPhone), // 60
		{ID: "empty"}, // 0
	}

	m := agg.Aggregate(records)

	assert.Equal(t, 5, m.TotalCustomers)
	assert.Equal(t, 68, m.AverageCompleteness) // (100+93+85+60+0)/5 = 67.6
	assert.Equal(t, 2, m.CompleteProfiles)
	assert.Equal(t, 3, m.IncompleteProfiles)
	assert.Equal(t, 1, m.PoorQualityProfiles)
	assert.Equal(t, Distribution{Excellent: 2, Good: 1, Fair: 1, Poor: 1}, m.QualityDistribution)

	sum := m.QualityDistribution.Excellent + m.QualityDistribution.Good +
		m.QualityDistribution.Fair + m.QualityDistribution.Poor
	assert.Equal(t, m.TotalCustomers, sum)
}

func TestAggregate_FieldGapOrdering(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{TopMissingLimit: 3})
	records := []domain.Customer{
		withoutFields(fullCustomer(), FieldFavoriteProduct, FieldBirthday, FieldPhone),
		withoutFields(fullCustomer(), FieldFavoriteProduct, FieldBirthday, FieldPhone),
		withoutFields(fullCustomer(), FieldFavoriteProduct, FieldEmail),
	}

	m := agg.Aggregate(records)

	require.Len(t, m.FieldGaps, 4)
	// favorite_product 3; phone 2 and birthday 2 tie in catalog order; email 1
	assert.Equal(t, FieldFavoriteProduct, m.FieldGaps[0].Field.Key)
	assert.Equal(t, FieldPhone, m.FieldGaps[1].Field.Key)
	assert.Equal(t, FieldBirthday, m.FieldGaps[2].Field.Key)
	assert.Equal(t, FieldEmail, m.FieldGaps[3].Field.Key)
	assert.Equal(t, 100, m.FieldGaps[0].MissingPercentage)
	assert.Equal(t, 67, m.FieldGaps[1].MissingPercentage)

	require.Len(t, m.TopMissingFields, 3)
	assert.Equal(t, m.FieldGaps[:3], m.TopMissingFields)
}

func TestAggregateResults_MatchesAggregate(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	records := []domain.Customer{fullCustomer(), {ID: "x"}, withoutFields(fullCustomer(), FieldAddress)}

	results := make([]CompletenessResult, len(records))
	for i, r := range records {
		results[i] = DefaultCatalog().Score(r)
	}
	assert.Equal(t, agg.Aggregate(records), agg.AggregateResults(results))
}

func TestAlerts_PoorShare(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	records := append(repeat(domain.Customer{ID: "poor"}, 40), repeat(fullCustomer(), 60)...)

	alerts := agg.Alerts(agg.Aggregate(records))

	require.Len(t, alerts, 3)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	assert.Equal(t, 40, alerts[0].AffectedCount)
	assert.Nil(t, alerts[0].Field)
	assert.Equal(t, SeverityWarning, alerts[1].Severity)
	assert.Equal(t, SeverityInfo, alerts[2].Severity)
	assert.Equal(t, 60, alerts[2].AffectedCount)
}

func TestAlerts_CriticalFieldMissingMajority(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	records := append(
		repeat(withoutFields(fullCustomer(), FieldEmail), 6),
		repeat(fullCustomer(), 4)...,
	)

	alerts := agg.Alerts(agg.Aggregate(records))

	require.Len(t, alerts, 2)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	require.NotNil(t, alerts[0].Field)
	assert.Equal(t, FieldEmail, *alerts[0].Field)
	assert.Equal(t, 6, alerts[0].AffectedCount)
	assert.Equal(t, SeverityInfo, alerts[1].Severity)
}

func TestAlerts_ExactlyHalfDoesNotFire(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	records := append(
		repeat(withoutFields(fullCustomer(), FieldPhone), 5),
		repeat(fullCustomer(), 5)...,
	)

	for _, a := range agg.Alerts(agg.Aggregate(records)) {
		assert.Nil(t, a.Field)
	}
}

func TestAlerts_Limit(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{AlertLimit: 2})
	records := append(repeat(domain.Customer{ID: "poor"}, 9), fullCustomer())

	alerts := agg.Alerts(agg.Aggregate(records))

	// poor share, email, phone, average, info: truncated to two criticals
	require.Len(t, alerts, 2)
	assert.Equal(t, SeverityCritical, alerts[0].Severity)
	assert.Equal(t, SeverityCritical, alerts[1].Severity)
	require.NotNil(t, alerts[1].Field)
	assert.Equal(t, FieldEmail, *alerts[1].Field)
}

func TestTrend(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	previous := []domain.Customer{withoutFields(fullCustomer(), FieldEmail, FieldPhone)}
	current := []domain.Customer{
		fullCustomer(),
		withoutFields(fullCustomer(), FieldEmail, FieldBirthday, FieldAddress),
	}

	tr := agg.Trend(current, previous)
	assert.Equal(t, 75, tr.Current)
	assert.Equal(t, 60, tr.Previous)
	assert.Equal(t, 15, tr.DeltaPercent)
	assert.Equal(t, DirectionUp, tr.Direction)
	assert.Equal(t, "+15%", tr.Improvement)

	tr = agg.Trend(previous, current)
	assert.Equal(t, DirectionDown, tr.Direction)
	assert.Equal(t, -15, tr.DeltaPercent)

	tr = agg.Trend(previous, previous)
	assert.Equal(t, DirectionStable, tr.Direction)
}

func TestQualityTrend_PartitionsByCreatedAt(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{})
	now := time.Date(2024, time.June, 30, 12, 0, 0, 0, time.UTC)

	recent := fullCustomer()
	recent.CreatedAt = now.AddDate(0, 0, -3)
	old := withoutFields(fullCustomer(), FieldEmail, FieldPhone)
	old.CreatedAt = now.AddDate(0, 0, -45)

	tr := agg.QualityTrend([]domain.Customer{old, recent}, now, 0)
	assert.Equal(t, 100, tr.Current)
	assert.Equal(t, 60, tr.Previous)
	assert.Equal(t, DirectionUp, tr.Direction)

	tr = agg.QualityTrend([]domain.Customer{old, recent}, now, 60*24*time.Hour)
	assert.Equal(t, 80, tr.Current)
	assert.Equal(t, 0, tr.Previous)
}

func TestRankIncomplete(t *testing.T) {
	agg := NewAggregator(DefaultCatalog(), Options{IncompleteLimit: 2})
	a := withoutFields(fullCustomer(), FieldBirthday, FieldAddress) // 70
	a.ID = "a"
	b := domain.Customer{ID: "b", Name: "Empty"} // 0
	c := fullCustomer()                          // excluded
	c.ID = "c"
	d := withoutFields(fullCustomer(), FieldBirthday, FieldAddress)
	d.ID = "d"

	got := agg.RankIncomplete([]domain.Customer{a, b, c, d})

	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].CustomerID)
	assert.Equal(t, "high", got[0].Priority)
	assert.Equal(t, "a", got[1].CustomerID)
	assert.Equal(t, "medium", got[1].Priority)
}
