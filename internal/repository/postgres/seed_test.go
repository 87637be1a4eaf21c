package postgres

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/crm-quality/internal/domain"
)

var seedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestGenerateSeed(t *testing.T) {
	seed := GenerateSeed(rand.New(rand.NewSource(7)), 200, seedNow, 0.4)
	require.Len(t, seed, 200)

	ids := map[string]bool{}
	var withEmail, withoutEmail int
	for _, s := range seed {
		c := s.Customer
		assert.False(t, ids[c.ID], "duplicate id")
		ids[c.ID] = true
		assert.NotEmpty(t, c.Name)
		assert.False(t, c.CreatedAt.After(seedNow))
		if c.Email != nil {
			withEmail++
		} else {
			withoutEmail++
		}
		if len(s.Sales) == 0 {
			assert.Nil(t, c.LastPurchaseDate)
			assert.True(t, s.OpenBalance.IsZero())
		} else {
			require.NotNil(t, c.LastPurchaseDate)
			assert.False(t, c.FirstPurchaseDate.After(*c.LastPurchaseDate))
			assert.True(t, s.LifetimeValue.IsPositive())
		}
	}
	assert.Positive(t, withEmail)
	assert.Positive(t, withoutEmail)
}

func TestGenerateSeed_NoSparsityFillsEverything(t *testing.T) {
	for _, s := range GenerateSeed(rand.New(rand.NewSource(1)), 20, seedNow, 0) {
		c := s.Customer
		assert.NotNil(t, c.Email)
		assert.NotNil(t, c.Phone)
		assert.NotNil(t, c.Address)
		assert.NotNil(t, c.Segment)
	}
}

func TestSeedWriter_Write(t *testing.T) {
	db, mock := setupTestDB(t)
	last := seedNow.AddDate(0, 0, -3)
	seed := []SeedCustomer{{
		Customer: domain.Customer{
			ID: "c-1", Name: "Ana Lima", Address: &domain.Address{Raw: "Rua X, 1 - Centro - Recife/PE"},
			LastPurchaseDate: &last, CreatedAt: seedNow, UpdatedAt: seedNow,
		},
		LifetimeValue: decimal.RequireFromString("100.00"),
		Sales:         []time.Time{last},
		Interactions:  []time.Time{seedNow},
		OpenBalance:   decimal.RequireFromString("25.50"),
	}}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customers").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO sales").WithArgs("c-1", sqlmock.AnyArg(), last).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO customer_interactions").WithArgs("c-1", seedNow).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO accounts_receivable").WithArgs("c-1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, NewSeedWriter(db).Write(context.Background(), seed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSeedWriter_RollsBackOnError(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO customers").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := NewSeedWriter(db).Write(context.Background(), []SeedCustomer{{Customer: domain.Customer{ID: "c-1"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "c-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
