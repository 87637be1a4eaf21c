package quality

import (
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/ignite/crm-quality/internal/domain"
)

// Defaults for Options.
const (
	DefaultTopMissingLimit = 5
	DefaultAlertLimit      = 5
	DefaultIncompleteLimit = 10
	DefaultTrendWindow     = 30 * 24 * time.Hour
)

// Options tunes an Aggregator. Zero values take the defaults.
type Options struct {
	TopMissingLimit int
	AlertLimit      int
	IncompleteLimit int
}

// Aggregator computes population-level quality statistics.
type Aggregator struct {
	catalog *Catalog
	opts    Options
}

// NewAggregator builds an Aggregator over catalog.
func NewAggregator(catalog *Catalog, opts Options) *Aggregator {
	if opts.TopMissingLimit <= 0 {
		opts.TopMissingLimit = DefaultTopMissingLimit
	}
	if opts.AlertLimit <= 0 {
		opts.AlertLimit = DefaultAlertLimit
	}
	if opts.IncompleteLimit <= 0 {
		opts.IncompleteLimit = DefaultIncompleteLimit
	}
	return &Aggregator{catalog: catalog, opts: opts}
}

// Catalog returns the catalog the aggregator scores with.
func (a *Aggregator) Catalog() *Catalog { return a.catalog }

// Distribution counts profiles per quality band.
type Distribution struct {
	Excellent int `json:"excellent"`
	Good      int `json:"good"`
	Fair      int `json:"fair"`
	Poor      int `json:"poor"`
}

// FieldGap is how often one field is missing across the population.
type FieldGap struct {
	Field             FieldDescriptor `json:"field"`
	MissingCount      int             `json:"missing_count"`
	MissingPercentage int             `json:"missing_percentage"`
}

// Metrics is the population quality summary.
type Metrics struct {
	TotalCustomers      int          `json:"total_customers"`
	AverageCompleteness int          `json:"average_completeness"`
	CompleteProfiles    int          `json:"complete_profiles"`
	IncompleteProfiles  int          `json:"incomplete_profiles"`
	PoorQualityProfiles int          `json:"poor_quality_profiles"`
	QualityDistribution Distribution `json:"quality_distribution"`
	TopMissingFields    []FieldGap   `json:"top_missing_fields"`
	FieldGaps           []FieldGap   `json:"field_gaps"`
}

// Aggregate scores every record and summarizes the population.
func (a *Aggregator) Aggregate(records []domain.Customer) Metrics {
	results := make([]CompletenessResult, len(records))
	for i, c := range records {
		results[i] = a.catalog.Score(c)
	}
	return a.AggregateResults(results)
}

// AggregateResults summarizes already-scored results, e.g. from composed rows.
// The results must come from this aggregator's catalog.
func (a *Aggregator) AggregateResults(results []CompletenessResult) Metrics {
	m := Metrics{
		TotalCustomers:   len(results),
		TopMissingFields: []FieldGap{},
		FieldGaps:        []FieldGap{},
	}
	if len(results) == 0 {
		return m
	}

	missing := make(map[FieldKey]int, len(a.catalog.fields))
	sum := 0
	for _, r := range results {
		sum += r.Percentage
		switch r.Level {
		case LevelExcellent:
			m.QualityDistribution.Excellent++
		case LevelGood:
			m.QualityDistribution.Good++
		case LevelFair:
			m.QualityDistribution.Fair++
		default:
			m.QualityDistribution.Poor++
		}
		if r.Percentage >= ExcellentThreshold {
			m.CompleteProfiles++
		}
		for _, f := range r.MissingFields {
			missing[f.Key]++
		}
	}

	m.AverageCompleteness = int(math.Round(float64(sum) / float64(len(results))))
	m.IncompleteProfiles = m.TotalCustomers - m.CompleteProfiles
	m.PoorQualityProfiles = m.QualityDistribution.Poor

	for _, f := range a.catalog.fields {
		n := missing[f.Key]
		if n == 0 {
			continue
		}
		m.FieldGaps = append(m.FieldGaps, FieldGap{
			Field:             f,
			MissingCount:      n,
			MissingPercentage: percentOf(n, m.TotalCustomers),
		})
	}
	// Stable sort keeps catalog order among equal counts.
	slices.SortStableFunc(m.FieldGaps, func(x, y FieldGap) int {
		return y.MissingCount - x.MissingCount
	})

	top := m.FieldGaps
	if len(top) > a.opts.TopMissingLimit {
		top = top[:a.opts.TopMissingLimit]
	}
	m.TopMissingFields = append(m.TopMissingFields, top...)
	return m
}

// Severity grades an Alert.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Alert is an actionable finding about the population.
type Alert struct {
	Severity          Severity  `json:"severity"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	RecommendedAction string    `json:"recommended_action"`
	AffectedCount     int       `json:"affected_count"`
	Field             *FieldKey `json:"field,omitempty"`
}

// Alert thresholds.
const (
	PoorShareAlertPercent       = 30
	CriticalFieldAlertPercent   = 50
	AverageCompletenessAlertMin = 70
)

// Alerts derives alerts from metrics, ordered critical, warning, info and
// truncated to the configured limit.
func (a *Aggregator) Alerts(m Metrics) []Alert {
	alerts := []Alert{}
	if m.TotalCustomers == 0 {
		return alerts
	}

	if m.PoorQualityProfiles*100 > m.TotalCustomers*PoorShareAlertPercent {
		alerts = append(alerts, Alert{
			Severity: SeverityCritical,
			Title:    "Too many low-quality profiles",
			Description: fmt.Sprintf("%d customers (%d%%) have less than %d%% of their data filled in",
				m.PoorQualityProfiles, percentOf(m.PoorQualityProfiles, m.TotalCustomers), FairThreshold),
			RecommendedAction: "Review and complete the highest-priority profiles",
			AffectedCount:     m.PoorQualityProfiles,
		})
	}

	for _, gap := range m.FieldGaps {
		if gap.Field.Priority != PriorityCritical {
			continue
		}
		if gap.MissingCount*100 <= m.TotalCustomers*CriticalFieldAlertPercent {
			continue
		}
		key := gap.Field.Key
		alerts = append(alerts, Alert{
			Severity:          SeverityCritical,
			Title:             fmt.Sprintf("Critical field missing: %s", gap.Field.Label),
			Description:       fmt.Sprintf("%d%% of customers have no %s", gap.MissingPercentage, strings.ToLower(gap.Field.Label)),
			RecommendedAction: "Prioritize collecting this field",
			AffectedCount:     gap.MissingCount,
			Field:             &key,
		})
	}

	if m.AverageCompleteness < AverageCompletenessAlertMin {
		alerts = append(alerts, Alert{
			Severity: SeverityWarning,
			Title:    "Low average completeness",
			Description: fmt.Sprintf("Average completeness is %d%%, below the recommended %d%%",
				m.AverageCompleteness, AverageCompletenessAlertMin),
			RecommendedAction: "Run a data update campaign",
			AffectedCount:     m.QualityDistribution.Fair + m.QualityDistribution.Poor,
		})
	}

	if m.CompleteProfiles > 0 {
		alerts = append(alerts, Alert{
			Severity:          SeverityInfo,
			Title:             "Complete profiles identified",
			Description:       fmt.Sprintf("%d customers have complete profiles (%d%%+)", m.CompleteProfiles, ExcellentThreshold),
			RecommendedAction: "Use them as a reference audience for personalized campaigns",
			AffectedCount:     m.CompleteProfiles,
		})
	}

	if len(alerts) > a.opts.AlertLimit {
		alerts = alerts[:a.opts.AlertLimit]
	}
	return alerts
}

// Direction of a quality trend.
type Direction string

const (
	DirectionUp     Direction = "up"
	DirectionDown   Direction = "down"
	DirectionStable Direction = "stable"
)

// Trend compares average completeness between two windows.
type Trend struct {
	Current      int       `json:"current"`
	Previous     int       `json:"previous"`
	DeltaPercent int       `json:"delta_percent"`
	Direction    Direction `json:"direction"`
	Improvement  string    `json:"improvement"`
}

// Trend compares the current window against the previous one. An empty
// window averages to 0.
func (a *Aggregator) Trend(current, previous []domain.Customer) Trend {
	cur := a.Aggregate(current).AverageCompleteness
	prev := a.Aggregate(previous).AverageCompleteness
	return trendOf(cur, prev)
}

func trendOf(cur, prev int) Trend {
	t := Trend{Current: cur, Previous: prev, DeltaPercent: cur - prev}
	switch {
	case t.DeltaPercent > 0:
		t.Direction = DirectionUp
		t.Improvement = fmt.Sprintf("+%d%%", t.DeltaPercent)
	case t.DeltaPercent < 0:
		t.Direction = DirectionDown
		t.Improvement = fmt.Sprintf("%d%%", t.DeltaPercent)
	default:
		t.Direction = DirectionStable
		t.Improvement = "0%"
	}
	return t
}

// PartitionByCreatedAt splits records into those created at or after cutoff
// and those created before it.
func PartitionByCreatedAt(records []domain.Customer, cutoff time.Time) (current, previous []domain.Customer) {
	for _, c := range records {
		if c.CreatedAt.Before(cutoff) {
			previous = append(previous, c)
		} else {
			current = append(current, c)
		}
	}
	return current, previous
}

// QualityTrend partitions records at now-window by creation time and
// compares the two halves. A non-positive window uses DefaultTrendWindow.
func (a *Aggregator) QualityTrend(records []domain.Customer, now time.Time, window time.Duration) Trend {
	if window <= 0 {
		window = DefaultTrendWindow
	}
	current, previous := PartitionByCreatedAt(records, now.Add(-window))
	return a.Trend(current, previous)
}

// IncompleteProfile ranks one customer needing attention.
type IncompleteProfile struct {
	CustomerID   string             `json:"customer_id"`
	Name         string             `json:"name"`
	Completeness CompletenessResult `json:"completeness"`
	Priority     string             `json:"priority"`
}

// RankIncomplete lists profiles below the nearly-complete threshold, least
// complete first, input order breaking ties.
func (a *Aggregator) RankIncomplete(records []domain.Customer) []IncompleteProfile {
	out := []IncompleteProfile{}
	for _, c := range records {
		res := a.catalog.Score(c)
		if res.Percentage >= NearlyCompleteThreshold {
			continue
		}
		priority := "medium"
		if len(res.CriticalMissing) > 0 {
			priority = "high"
		}
		out = append(out, IncompleteProfile{CustomerID: c.ID, Name: c.Name, Completeness: res, Priority: priority})
	}
	slices.SortStableFunc(out, func(x, y IncompleteProfile) int {
		return x.Completeness.Percentage - y.Completeness.Percentage
	})
	if len(out) > a.opts.IncompleteLimit {
		out = out[:a.opts.IncompleteLimit]
	}
	return out
}
