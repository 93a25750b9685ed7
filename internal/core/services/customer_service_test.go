package services

import (
	"context"
	"testing"

	"easymoney-loans/internal/adapters/persistence/models"
	"easymoney-loans/internal/core/domain"
	"easymoney-loans/internal/pkg/pagination"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	validIDNumber       = "8001015009087"
	secondValidIDNumber = "9001015009086"
)

func TestCustomerService_Create(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		customer, warning, err := env.customerService.Create(ctx, CreateCustomerInput{
			ClientName: "  Thandi Nkosi  ",
			IDNumber:   validIDNumber,
			MandateID:  "MND-001",
		}, actor)
		require.NoError(t, err)
		assert.Empty(t, warning)
		assert.Equal(t, "Thandi Nkosi", customer.ClientName)
		assert.Equal(t, "Lerato Mokoena", customer.CreatedByName)
		assert.Equal(t, int64(1), env.auditCount(t))
	})

	t.Run("DuplicateIdentityRejected", func(t *testing.T) {
		_, _, err := env.customerService.Create(ctx, CreateCustomerInput{
			ClientName: "Thandi Nkosi",
			IDNumber:   validIDNumber,
			MandateID:  "MND-002",
		}, actor)
		assert.ErrorIs(t, err, ErrCustomerExists)
	})

	t.Run("BadChecksumRejectedAndNotPersisted", func(t *testing.T) {
		before := env.auditCount(t)
		_, _, err := env.customerService.Create(ctx, CreateCustomerInput{
			ClientName: "Jabu Khumalo",
			IDNumber:   "1234567890123",
			MandateID:  "MND-003",
		}, actor)
		assert.ErrorIs(t, err, ErrInvalidIDNumber)

		var count int64
		require.NoError(t, env.db.Model(&models.Customer{}).Count(&count).Error)
		assert.Equal(t, int64(1), count)
		assert.Equal(t, before, env.auditCount(t))
	})

	t.Run("MissingName", func(t *testing.T) {
		_, _, err := env.customerService.Create(ctx, CreateCustomerInput{
			ClientName: "   ",
			IDNumber:   secondValidIDNumber,
		}, actor)
		assert.ErrorIs(t, err, ErrCustomerNameRequired)
	})
}

func TestCustomerService_IDMasking(t *testing.T) {
	env := newTestEnv(t)
	employee := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)
	manager := env.seedUser(t, "Pieter van Wyk", domain.RoleManager)
	ctx := context.Background()

	created := env.seedCustomer(t, employee, validIDNumber)

	t.Run("EmployeeSeesMaskedID", func(t *testing.T) {
		customer, err := env.customerService.GetByID(ctx, created.ID, employee)
		require.NoError(t, err)
		assert.Equal(t, "8001******087", customer.IDNumber)
		assert.Equal(t, "8001******087", customer.IDNumberMasked)
	})

	t.Run("ManagerSeesFullID", func(t *testing.T) {
		customer, err := env.customerService.GetByID(ctx, created.ID, manager)
		require.NoError(t, err)
		assert.Equal(t, validIDNumber, customer.IDNumber)
		assert.Equal(t, "8001******087", customer.IDNumberMasked)
	})

	t.Run("ListAppliesSameMasking", func(t *testing.T) {
		customers, total, err := env.customerService.List(ctx, &pagination.Params{Page: 1, Limit: 50}, employee)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, customers, 1)
		assert.Equal(t, "8001******087", customers[0].IDNumber)
	})
}

func TestCustomerService_GetByID_NotFound(t *testing.T) {
	env := newTestEnv(t)
	actor := env.seedUser(t, "Lerato Mokoena", domain.RoleEmployee)

	_, err := env.customerService.GetByID(context.Background(), "no-such-id", actor)
	assert.ErrorIs(t, err, ErrCustomerNotFound)
}
