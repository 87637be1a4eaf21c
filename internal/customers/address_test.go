package customers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ignite/crm-quality/internal/domain"
)

func TestCityOf(t *testing.T) {
	tests := []struct {
		name string
		addr *domain.Address
		want string
	}{
		{"nil", nil, ""},
		{"structured", &domain.Address{City: " Campinas ", Raw: "x - Santos/SP"}, "Campinas"},
		{"raw slash", &domain.Address{Raw: "Rua X, 10 - Centro - São Paulo/SP - CEP 01000-000"}, "São Paulo"},
		{"raw dash", &domain.Address{Raw: "Av. Atlântica 100, Rio de Janeiro-RJ"}, "Rio de Janeiro"},
		{"no pattern", &domain.Address{Raw: "Rua sem cidade 42"}, ""},
		{"empty", &domain.Address{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CityOf(tt.addr))
		})
	}
}
