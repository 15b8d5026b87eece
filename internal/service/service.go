package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"omset/backend/internal/analytics"
	"omset/backend/internal/domain"
	"omset/backend/internal/store"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo     store.Repository
	engine   *analytics.Engine
	now      func() time.Time
	validate *validator.Validate
}

type Option func(*Service)

// WithClock overrides the reference time used by Dashboard.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

func New(repo store.Repository, engine *analytics.Engine, opts ...Option) *Service {
	if engine == nil {
		engine = analytics.NewEngine(time.UTC)
	}

	s := &Service{
		repo:     repo,
		engine:   engine,
		now:      time.Now,
		validate: newValidator(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.repo.ListProducts(ctx)
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductRequest) (domain.Product, error) {
	product, err := s.productFromRequest(req)
	if err != nil {
		return domain.Product{}, err
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_create", "product", created.ID, fmt.Sprintf("name=%s,price=%s", created.Name, created.Price))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductRequest) (domain.Product, error) {
	product, err := s.productFromRequest(req)
	if err != nil {
		return domain.Product{}, err
	}
	product.ID = id

	updated, err := s.repo.UpdateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, "product_update", "product", updated.ID, fmt.Sprintf("name=%s,price=%s", updated.Name, updated.Price))
	return *updated, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.repo.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "product_delete", "product", id, "")
	return nil
}

func (s *Service) ListTransactions(ctx context.Context) ([]domain.TransactionView, error) {
	return s.repo.ListTransactions(ctx)
}

func (s *Service) CreateTransaction(ctx context.Context, req domain.TransactionRequest) (domain.TransactionView, error) {
	tx, err := s.transactionFromRequest(ctx, req)
	if err != nil {
		return domain.TransactionView{}, err
	}

	created, err := s.repo.CreateTransaction(ctx, tx)
	if err != nil {
		return domain.TransactionView{}, err
	}

	s.logAudit(ctx, "transaction_create", "transaction", created.ID, ledgerDetail(created.Transaction))
	return *created, nil
}

func (s *Service) UpdateTransaction(ctx context.Context, id int64, req domain.TransactionRequest) (domain.TransactionView, error) {
	tx, err := s.transactionFromRequest(ctx, req)
	if err != nil {
		return domain.TransactionView{}, err
	}
	tx.ID = id

	updated, err := s.repo.UpdateTransaction(ctx, tx)
	if err != nil {
		return domain.TransactionView{}, err
	}

	s.logAudit(ctx, "transaction_update", "transaction", updated.ID, ledgerDetail(updated.Transaction))
	return *updated, nil
}

func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	if err := s.repo.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	s.logAudit(ctx, "transaction_delete", "transaction", id, "")
	return nil
}

// Location is the zone that decides which calendar day "today" is.
func (s *Service) Location() *time.Location {
	return s.engine.Location()
}

// Dashboard recomputes the aggregate view from the full ledger on every call.
func (s *Service) Dashboard(ctx context.Context) (domain.DashboardSummary, error) {
	ledger, err := s.repo.ListTransactions(ctx)
	if err != nil {
		return domain.DashboardSummary{}, fmt.Errorf("load ledger: %w", err)
	}
	return s.engine.Summarize(s.now(), ledger), nil
}

func (s *Service) productFromRequest(req domain.ProductRequest) (domain.Product, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validateStruct(req); err != nil {
		return domain.Product{}, err
	}
	if err := checkMoneyScale("price", req.Price); err != nil {
		return domain.Product{}, err
	}
	return domain.Product{Name: req.Name, Price: req.Price}, nil
}

func (s *Service) transactionFromRequest(ctx context.Context, req domain.TransactionRequest) (domain.Transaction, error) {
	if err := s.validateStruct(req); err != nil {
		return domain.Transaction{}, err
	}
	if err := checkMoneyScale("price", req.Price); err != nil {
		return domain.Transaction{}, err
	}
	// Clients computing the total in floating point send values like 0.30000000000000004.
	total := req.Total.Round(domain.MoneyScale)
	if want := domain.LineTotal(req.Quantity, req.Price); !total.Equal(want) {
		return domain.Transaction{}, store.NewValidationError("total", "must equal quantity * price ("+want.StringFixed(domain.MoneyScale)+")")
	}

	if _, err := s.repo.GetProduct(ctx, req.ProductID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Transaction{}, store.NewValidationError("product_id", "references an unknown product")
		}
		return domain.Transaction{}, err
	}

	return domain.Transaction{
		TransactionDate: req.TransactionDate,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Price:           req.Price,
		Total:           total,
	}, nil
}

func (s *Service) validateStruct(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &store.ValidationError{Fields: make(map[string]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		verr.Fields[fe.Field()] = fieldMessage(fe)
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gt":
		return "must be greater than " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	default:
		return "is invalid"
	}
}

func checkMoneyScale(field string, amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(domain.MoneyScale)) {
		return store.NewValidationError(field, fmt.Sprintf("must have at most %d decimal places", domain.MoneyScale))
	}
	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return field.Name
		}
		return name
	})
	// decimal.Decimal and domain.Date are structs; expose them as plain values so that
	// required/gt work. A nil return makes "required" fail.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(domain.Date); ok && !d.IsZero() {
			return d.String()
		}
		return nil
	}, domain.Date{})
	return v
}

func ledgerDetail(tx domain.Transaction) string {
	return fmt.Sprintf("date=%s,product_id=%d,qty=%d,price=%s,total=%s", tx.TransactionDate, tx.ProductID, tx.Quantity, tx.Price, tx.Total)
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID int64, detail string) {
	actor := "system"
	if value, ok := ActorFromContext(ctx); ok && value.Username != "" {
		actor = value.Username
	}

	log.Info().
		Str("actor", actor).
		Str("action", action).
		Str("entity_type", entityType).
		Int64("entity_id", entityID).
		Str("detail", detail).
		Msg("audit")
}
