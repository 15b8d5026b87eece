package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"omset/backend/internal/domain"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
)

// ValidationError lists rejected request fields by their JSON name.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError(field string, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return ErrValidation.Error() + ": " + strings.Join(parts, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListTransactions(ctx context.Context) ([]domain.TransactionView, error)
	CreateTransaction(ctx context.Context, tx domain.Transaction) (*domain.TransactionView, error)
	UpdateTransaction(ctx context.Context, tx domain.Transaction) (*domain.TransactionView, error)
	DeleteTransaction(ctx context.Context, id int64) error
}
