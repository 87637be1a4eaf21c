package quality

import "github.com/ignite/crm-quality/internal/domain"

// IsProfileComplete reports whether every critical field is present.
func (cat *Catalog) IsProfileComplete(c domain.Customer) bool {
	for _, f := range cat.fields {
		if f.Priority == PriorityCritical && !f.Present(&c) {
			return false
		}
	}
	return true
}

// NextSuggestedField picks the single field an operator should fill next:
// the first missing critical field, else the heaviest missing non-critical
// field (declaration order breaks ties). ok is false when nothing is missing.
func (cat *Catalog) NextSuggestedField(c domain.Customer) (FieldDescriptor, bool) {
	for _, f := range cat.fields {
		if f.Priority == PriorityCritical && !f.Present(&c) {
			return f, true
		}
	}
	var best FieldDescriptor
	found := false
	for _, f := range cat.fields {
		if f.Priority == PriorityCritical || f.Present(&c) {
			continue
		}
		if !found || f.Weight > best.Weight {
			best, found = f, true
		}
	}
	return best, found
}

// Suggestions returns context-aware nudges for a single customer, on top of
// the generic recommendations in CompletenessResult.
func (cat *Catalog) Suggestions(c domain.Customer) []string {
	res := cat.Score(c)
	out := []string{}

	for _, f := range res.CriticalMissing {
		switch f.Key {
		case FieldEmail:
			out = append(out, "Add an email to enable personalized marketing campaigns")
		case FieldPhone:
			out = append(out, "Add a phone number to improve service and support")
		}
	}

	if hasTime(c.LastPurchaseDate) {
		if _, tracked := cat.Field(FieldBirthday); tracked && !hasTime(c.Birthday) {
			out = append(out, "Add the birthday to include this customer in birthday campaigns")
		}
		if _, tracked := cat.Field(FieldPurchaseFrequency); tracked && !hasText(c.PurchaseFrequency) {
			out = append(out, "Set the purchase frequency to enable automatic segmentation")
		}
	}

	if res.Percentage >= GoodThreshold && res.Percentage < ExcellentThreshold {
		out = append(out, "Almost there! A few more fields will unlock the full set of insights")
	}
	return out
}
