package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"omset/backend/internal/analytics"
	"omset/backend/internal/domain"
	"omset/backend/internal/store"
	"omset/backend/internal/store/memory"
)

var fixedNow = time.Date(2026, time.October, 18, 9, 30, 0, 0, time.UTC)

func newTestService() *Service {
	return New(memory.New(), analytics.NewEngine(time.UTC), WithClock(func() time.Time { return fixedNow }))
}

func adminContext() context.Context {
	return WithActor(context.Background(), domain.Actor{Username: "admin"})
}

func dec(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func fieldErrors(t *testing.T, err error) map[string]string {
	t.Helper()
	var verr *store.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	return verr.Fields
}

func mustCreateProduct(t *testing.T, svc *Service, name string, price string) domain.Product {
	t.Helper()
	product, err := svc.CreateProduct(adminContext(), domain.ProductRequest{Name: name, Price: dec(price)})
	require.NoError(t, err)
	return product
}

func TestCreateProductValidation(t *testing.T) {
	svc := newTestService()

	cases := []struct {
		name  string
		req   domain.ProductRequest
		field string
	}{
		{"blank name", domain.ProductRequest{Name: "   ", Price: dec("1000")}, "name"},
		{"missing price", domain.ProductRequest{Name: "Kopi"}, "price"},
		{"negative price", domain.ProductRequest{Name: "Kopi", Price: dec("-5")}, "price"},
		{"too precise price", domain.ProductRequest{Name: "Kopi", Price: dec("10.005")}, "price"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateProduct(adminContext(), tc.req)
			require.ErrorIs(t, err, store.ErrValidation)
			assert.Contains(t, fieldErrors(t, err), tc.field)
		})
	}
}

func TestCreateProductTrimsNameAndListsSorted(t *testing.T) {
	svc := newTestService()
	mustCreateProduct(t, svc, "  Teh Manis ", "5000")
	mustCreateProduct(t, svc, "Air Mineral", "4000")

	products, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "Air Mineral", products[0].Name)
	assert.Equal(t, "Teh Manis", products[1].Name)
}

func TestUpdateProduct(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Kopi", "18000")

	updated, err := svc.UpdateProduct(adminContext(), product.ID, domain.ProductRequest{Name: "Kopi Susu", Price: dec("20000.50")})
	require.NoError(t, err)
	assert.Equal(t, "Kopi Susu", updated.Name)
	assert.True(t, updated.Price.Equal(dec("20000.5")))

	_, err = svc.UpdateProduct(adminContext(), 999, domain.ProductRequest{Name: "X", Price: dec("1")})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = svc.UpdateProduct(adminContext(), product.ID, domain.ProductRequest{Name: "", Price: dec("1")})
	assert.ErrorIs(t, err, store.ErrValidation)
}

func TestDeleteProductTwiceReturnsNotFound(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Kopi", "18000")

	require.NoError(t, svc.DeleteProduct(adminContext(), product.ID))
	assert.ErrorIs(t, svc.DeleteProduct(adminContext(), product.ID), store.ErrNotFound)
}

func TestCreateTransactionRequiresEveryField(t *testing.T) {
	svc := newTestService()

	_, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{})
	require.ErrorIs(t, err, store.ErrValidation)

	fields := fieldErrors(t, err)
	for _, field := range []string{"transaction_date", "product_id", "quantity", "price", "total"} {
		assert.Equal(t, "is required", fields[field], field)
	}
}

func TestCreateTransactionRejectsMismatchedTotal(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Kopi", "18000")

	_, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 18),
		ProductID:       product.ID,
		Quantity:        2,
		Price:           dec("18000"),
		Total:           dec("18000"),
	})
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Contains(t, fieldErrors(t, err), "total")
}

func TestCreateTransactionRoundsFloatingPointTotal(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Permen", "0.10")

	var req domain.TransactionRequest
	body := `{"transaction_date":"2026-10-18","product_id":1,"quantity":3,"price":0.1,"total":0.30000000000000004}`
	require.NoError(t, json.Unmarshal([]byte(body), &req))
	require.Equal(t, product.ID, req.ProductID)

	created, err := svc.CreateTransaction(adminContext(), req)
	require.NoError(t, err)
	assert.True(t, created.Total.Equal(dec("0.3")), "stored total %s", created.Total)

	ledger, err := svc.ListTransactions(adminContext())
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.True(t, ledger[0].Total.Equal(dec("0.30")))
}

func TestCreateTransactionTotalOffByACentIsRejected(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Permen", "0.10")

	_, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 18),
		ProductID:       product.ID,
		Quantity:        3,
		Price:           dec("0.10"),
		Total:           dec("0.31"),
	})
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Equal(t, "must equal quantity * price (0.30)", fieldErrors(t, err)["total"])
}

func TestRequestsBeyondColumnBoundsAreRejected(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Kopi", "18000")

	_, err := svc.CreateProduct(adminContext(), domain.ProductRequest{Name: "Emas", Price: dec("1000000000000")})
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Equal(t, "must be less than 1000000000000", fieldErrors(t, err)["price"])

	cases := []struct {
		name  string
		req   domain.TransactionRequest
		field string
	}{
		{
			"quantity above INTEGER",
			domain.TransactionRequest{
				TransactionDate: domain.NewDate(2026, time.October, 18),
				ProductID:       product.ID,
				Quantity:        1 << 31,
				Price:           dec("1"),
				Total:           dec("2147483648"),
			},
			"quantity",
		},
		{
			"price above NUMERIC(14,2)",
			domain.TransactionRequest{
				TransactionDate: domain.NewDate(2026, time.October, 18),
				ProductID:       product.ID,
				Quantity:        1,
				Price:           dec("1000000000000"),
				Total:           dec("1000000000000"),
			},
			"price",
		},
		{
			"total above NUMERIC(16,2)",
			domain.TransactionRequest{
				TransactionDate: domain.NewDate(2026, time.October, 18),
				ProductID:       product.ID,
				Quantity:        1000,
				Price:           dec("999999999999"),
				Total:           dec("999999999999000"),
			},
			"total",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateTransaction(adminContext(), tc.req)
			require.ErrorIs(t, err, store.ErrValidation)
			assert.Contains(t, fieldErrors(t, err), tc.field)
		})
	}
}

func TestCreateTransactionRejectsDeletedProduct(t *testing.T) {
	svc := newTestService()
	product := mustCreateProduct(t, svc, "Kopi", "18000")
	require.NoError(t, svc.DeleteProduct(adminContext(), product.ID))

	_, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 18),
		ProductID:       product.ID,
		Quantity:        1,
		Price:           dec("18000"),
		Total:           dec("18000"),
	})
	require.ErrorIs(t, err, store.ErrValidation)
	assert.Contains(t, fieldErrors(t, err), "product_id")
}

func TestUpdateTransactionReplacesAllFields(t *testing.T) {
	svc := newTestService()
	kopi := mustCreateProduct(t, svc, "Kopi", "18000")
	teh := mustCreateProduct(t, svc, "Teh", "5000")

	created, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 17),
		ProductID:       kopi.ID,
		Quantity:        1,
		Price:           dec("18000"),
		Total:           dec("18000"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Kopi", created.ProductName)

	updated, err := svc.UpdateTransaction(adminContext(), created.ID, domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 18),
		ProductID:       teh.ID,
		Quantity:        3,
		Price:           dec("4500"),
		Total:           dec("13500"),
	})
	require.NoError(t, err)

	ledger, err := svc.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, updated, ledger[0])
	assert.Equal(t, "Teh", ledger[0].ProductName)
	assert.Equal(t, 3, ledger[0].Quantity)
	assert.True(t, ledger[0].Total.Equal(dec("13500")))
	assert.Equal(t, "2026-10-18", ledger[0].TransactionDate.String())
}

func TestUpdateTransactionMismatchedTotalLeavesRowUntouched(t *testing.T) {
	svc := newTestService()
	kopi := mustCreateProduct(t, svc, "Kopi", "18000")

	created, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 17),
		ProductID:       kopi.ID,
		Quantity:        1,
		Price:           dec("18000"),
		Total:           dec("18000"),
	})
	require.NoError(t, err)

	_, err = svc.UpdateTransaction(adminContext(), created.ID, domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 17),
		ProductID:       kopi.ID,
		Quantity:        5,
		Price:           dec("18000"),
		Total:           dec("18000"),
	})
	require.ErrorIs(t, err, store.ErrValidation)

	ledger, err := svc.ListTransactions(context.Background())
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, 1, ledger[0].Quantity)
}

func TestTransactionNotFound(t *testing.T) {
	svc := newTestService()
	kopi := mustCreateProduct(t, svc, "Kopi", "18000")

	_, err := svc.UpdateTransaction(adminContext(), 77, domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 17),
		ProductID:       kopi.ID,
		Quantity:        1,
		Price:           dec("18000"),
		Total:           dec("18000"),
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.ErrorIs(t, svc.DeleteTransaction(adminContext(), 77), store.ErrNotFound)
}

func TestDeleteTransactionTwiceReturnsNotFound(t *testing.T) {
	svc := newTestService()
	kopi := mustCreateProduct(t, svc, "Kopi", "18000")
	created, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{
		TransactionDate: domain.NewDate(2026, time.October, 17),
		ProductID:       kopi.ID,
		Quantity:        1,
		Price:           dec("18000"),
		Total:           dec("18000"),
	})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTransaction(adminContext(), created.ID))
	assert.ErrorIs(t, svc.DeleteTransaction(adminContext(), created.ID), store.ErrNotFound)
}

func TestDashboardUsesServiceClockAndKeepsDeletedProductNames(t *testing.T) {
	svc := newTestService()
	kopi := mustCreateProduct(t, svc, "Kopi", "18000")
	teh := mustCreateProduct(t, svc, "Teh", "5000")

	sales := []struct {
		product domain.Product
		daysAgo int
		qty     int
	}{
		{kopi, 0, 2},
		{teh, 0, 4},
		{teh, 5, 3},
		{kopi, 20, 1},
	}
	today := domain.DateOf(fixedNow)
	for _, sale := range sales {
		_, err := svc.CreateTransaction(adminContext(), domain.TransactionRequest{
			TransactionDate: today.AddDays(-sale.daysAgo),
			ProductID:       sale.product.ID,
			Quantity:        sale.qty,
			Price:           sale.product.Price,
			Total:           domain.LineTotal(sale.qty, sale.product.Price),
		})
		require.NoError(t, err)
	}
	require.NoError(t, svc.DeleteProduct(adminContext(), teh.ID))

	summary, err := svc.Dashboard(context.Background())
	require.NoError(t, err)

	assert.True(t, summary.TodayRevenue.Equal(dec("56000")), summary.TodayRevenue.String())
	assert.True(t, summary.WeekRevenue.Equal(dec("71000")), summary.WeekRevenue.String())
	assert.True(t, summary.MonthRevenue.Equal(dec("89000")), summary.MonthRevenue.String())
	assert.Equal(t, int64(10), summary.TotalUnitsSold)
	require.NotNil(t, summary.BestSellingProduct)
	assert.Equal(t, "Teh", *summary.BestSellingProduct)
}

func TestActorRoundTripsThroughContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	actor, ok := ActorFromContext(adminContext())
	require.True(t, ok)
	assert.Equal(t, "admin", actor.Username)
}
