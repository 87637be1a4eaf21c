package customers

import (
	"regexp"
	"strings"

	"github.com/ignite/crm-quality/internal/domain"
)

// cityPattern matches the "City/UF" or "City-UF" tail of free-text addresses,
// e.g. "Rua X, 10 - Centro - São Paulo/SP - CEP 01000-000".
var cityPattern = regexp.MustCompile(`([\p{L} ]+)[/-]([A-Z]{2})\b`)

// CityOf extracts the city from a structured address, falling back to the
// legacy free-text form. It returns "" when no city can be found.
func CityOf(a *domain.Address) string {
	if a == nil {
		return ""
	}
	if city := strings.TrimSpace(a.City); city != "" {
		return city
	}
	m := cityPattern.FindStringSubmatch(a.Raw)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
