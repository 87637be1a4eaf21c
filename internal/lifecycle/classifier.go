// Package lifecycle derives a customer's lifecycle status from its segment and
// purchase recency.
//
// Classification walks an ordered rule list and stops at the first match.
// Segment overrides sit ahead of the recency rules, so a "Loyal-Gold"
// customer who has not bought in a year is still VIP. The rule order is
// part of the contract and is fixed; RuleNames reports it.
package lifecycle

import (
	"strings"
	"time"

	"github.com/ignite/crm-quality/internal/calendar"
	"github.com/ignite/crm-quality/internal/domain"
)

// Recency windows, in days since the last purchase.
const (
	ActiveWindowDays  = 30
	RegularWindowDays = 90
)

// Input carries everything a rule may look at.
type Input struct {
	Segment      *string
	LastPurchase *time.Time
	Now          time.Time
	Location     *time.Location
}

// Classification is the classifier output.
type Classification struct {
	Status domain.Status      `json:"status"`
	Color  domain.StatusColor `json:"color"`
	Rule   string             `json:"rule"`
}

// Rule is one entry of the ordered rule list. Resolve returns false when the
// rule does not apply.
type Rule struct {
	Name    string
	Resolve func(in Input) (domain.Status, domain.StatusColor, bool)
}

func segmentRule(name, segment string, status domain.Status, color domain.StatusColor) Rule {
	return Rule{
		Name: name,
		Resolve: func(in Input) (domain.Status, domain.StatusColor, bool) {
			if segmentOf(in) == segment {
				return status, color, true
			}
			return "", "", false
		},
	}
}

// rules is the ordered rule list. First match wins.
var rules = []Rule{
	{
		Name: "no_segment",
		Resolve: func(in Input) (domain.Status, domain.StatusColor, bool) {
			if segmentOf(in) == "" {
				return domain.StatusInactive, domain.ColorGray, true
			}
			return "", "", false
		},
	},
	segmentRule("loyal_gold", domain.SegmentLoyalGold, domain.StatusVIP, domain.ColorGold),
	segmentRule("at_risk", domain.SegmentAtRisk, domain.StatusAtRisk, domain.ColorRed),
	segmentRule("inactive", domain.SegmentInactive, domain.StatusInactive, domain.ColorGray),
	{
		Name: "purchase_recency",
		Resolve: func(in Input) (domain.Status, domain.StatusColor, bool) {
			days, ok := calendar.RecencyInDays(in.LastPurchase, in.Now, in.Location)
			if !ok {
				return "", "", false
			}
			switch {
			case days <= ActiveWindowDays:
				return domain.StatusActive, domain.ColorGreen, true
			case days <= RegularWindowDays:
				return domain.StatusRegular, domain.ColorYellow, true
			default:
				return domain.StatusReactivate, domain.ColorOrange, true
			}
		},
	},
	{
		Name: "no_purchase_history",
		Resolve: func(Input) (domain.Status, domain.StatusColor, bool) {
			return domain.StatusRegular, domain.ColorYellow, true
		},
	},
}

// RuleNames returns the rule names in evaluation order.
func RuleNames() []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

func segmentOf(in Input) string {
	if in.Segment == nil {
		return ""
	}
	return strings.TrimSpace(*in.Segment)
}

// Classify evaluates the rules in order and returns the first match.
func Classify(in Input) Classification {
	for _, r := range rules {
		if status, color, ok := r.Resolve(in); ok {
			return Classification{Status: status, Color: color, Rule: r.Name}
		}
	}
	// Unreachable: the last rule always matches.
	return Classification{Status: domain.StatusRegular, Color: domain.ColorYellow, Rule: "default"}
}

// ClassifyCustomer is a convenience wrapper over Classify for a record.
func ClassifyCustomer(c domain.Customer, now time.Time, loc *time.Location) Classification {
	return Classify(Input{
		Segment:      c.Segment,
		LastPurchase: c.LastPurchaseDate,
		Now:          now,
		Location:     loc,
	})
}
