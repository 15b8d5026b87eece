package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"omset/backend/internal/domain"
	"omset/backend/internal/store"
)

type productRow struct {
	product domain.Product
	deleted bool
}

type Store struct {
	mu                sync.RWMutex
	products          map[int64]productRow
	transactions      map[int64]domain.Transaction
	nextProductID     int64
	nextTransactionID int64
}

func New() *Store {
	return &Store{
		products:     make(map[int64]productRow),
		transactions: make(map[int64]domain.Transaction),
	}
}

// NewSeeded returns a store with a demo catalog and a week of sales relative to now.
func NewSeeded(now time.Time) *Store {
	s := New()
	ctx := context.Background()

	catalog := []struct {
		name  string
		price int64
	}{
		{"Kopi Susu Gula Aren", 18000},
		{"Es Teh Manis", 5000},
		{"Roti Bakar Coklat", 15000},
		{"Mie Goreng Spesial", 22000},
		{"Air Mineral 600ml", 4000},
	}
	ids := make([]int64, 0, len(catalog))
	for _, item := range catalog {
		created, _ := s.CreateProduct(ctx, domain.Product{Name: item.name, Price: decimal.NewFromInt(item.price)})
		ids = append(ids, created.ID)
	}

	today := domain.DateOf(now)
	sales := []struct {
		daysAgo  int
		product  int
		quantity int
	}{
		{0, 0, 4}, {0, 1, 6}, {1, 2, 2}, {2, 0, 3}, {3, 3, 5}, {5, 4, 10}, {12, 1, 8}, {25, 2, 1},
	}
	for _, sale := range sales {
		price := catalog[sale.product].price
		_, _ = s.CreateTransaction(ctx, domain.Transaction{
			TransactionDate: today.AddDays(-sale.daysAgo),
			ProductID:       ids[sale.product],
			Quantity:        sale.quantity,
			Price:           decimal.NewFromInt(price),
			Total:           domain.LineTotal(sale.quantity, decimal.NewFromInt(price)),
		})
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, row := range s.products {
		if row.deleted {
			continue
		}
		products = append(products, row.product)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Name == b.Name {
			return cmpInt64(a.ID, b.ID)
		}
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.products[id]
	if !exists || row.deleted {
		return nil, store.ErrNotFound
	}
	product := row.product
	return &product, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || !product.Price.IsPositive() {
		return nil, store.NewValidationError("product", "name and positive price are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextProductID++
	product.ID = s.nextProductID
	s.products[product.ID] = productRow{product: product}
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || !product.Price.IsPositive() {
		return nil, store.NewValidationError("product", "name and positive price are required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.products[product.ID]
	if !exists || row.deleted {
		return nil, store.ErrNotFound
	}
	row.product = product
	s.products[product.ID] = row
	updated := product
	return &updated, nil
}

// DeleteProduct hides the product from the catalog; ledger rows keep resolving its name.
func (s *Store) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, exists := s.products[id]
	if !exists || row.deleted {
		return store.ErrNotFound
	}
	row.deleted = true
	s.products[id] = row
	return nil
}

func (s *Store) ListTransactions(_ context.Context) ([]domain.TransactionView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views := make([]domain.TransactionView, 0, len(s.transactions))
	for _, tx := range s.transactions {
		views = append(views, s.viewLocked(tx))
	}

	slices.SortFunc(views, func(a, b domain.TransactionView) int {
		switch {
		case a.TransactionDate.After(b.TransactionDate):
			return -1
		case a.TransactionDate.Before(b.TransactionDate):
			return 1
		}
		return cmpInt64(b.ID, a.ID)
	})
	return views, nil
}

func (s *Store) CreateTransaction(_ context.Context, tx domain.Transaction) (*domain.TransactionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.products[tx.ProductID]; !exists {
		return nil, store.NewValidationError("product_id", "references an unknown product")
	}

	s.nextTransactionID++
	tx.ID = s.nextTransactionID
	s.transactions[tx.ID] = tx
	view := s.viewLocked(tx)
	return &view, nil
}

func (s *Store) UpdateTransaction(_ context.Context, tx domain.Transaction) (*domain.TransactionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[tx.ID]; !exists {
		return nil, store.ErrNotFound
	}
	if _, exists := s.products[tx.ProductID]; !exists {
		return nil, store.NewValidationError("product_id", "references an unknown product")
	}

	s.transactions[tx.ID] = tx
	view := s.viewLocked(tx)
	return &view, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.transactions[id]; !exists {
		return store.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) viewLocked(tx domain.Transaction) domain.TransactionView {
	return domain.TransactionView{
		Transaction: tx,
		ProductName: s.products[tx.ProductID].product.Name,
	}
}

func cmpInt64(a int64, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
