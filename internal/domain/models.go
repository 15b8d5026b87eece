package domain

import "github.com/shopspring/decimal"

// MoneyScale is the number of fractional digits a stored amount may carry.
const MoneyScale = 2

func init() {
	// The SPA reads amounts as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID    int64           `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type ProductRequest struct {
	Name  string          `json:"name" validate:"required"`
	Price decimal.Decimal `json:"price" validate:"required,gt=0,lt=1000000000000"`
}

type Transaction struct {
	ID              int64           `json:"id"`
	TransactionDate Date            `json:"transaction_date"`
	ProductID       int64           `json:"product_id"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	Total           decimal.Decimal `json:"total"`
}

// TransactionView is a ledger row with the product name joined from the catalog.
type TransactionView struct {
	Transaction
	ProductName string `json:"productName"`
}

// TransactionRequest bounds mirror the ledger columns: quantity INTEGER, price NUMERIC(14,2),
// total NUMERIC(16,2).
type TransactionRequest struct {
	TransactionDate Date            `json:"transaction_date" validate:"required"`
	ProductID       int64           `json:"product_id" validate:"required,gt=0"`
	Quantity        int             `json:"quantity" validate:"required,gt=0,max=2147483647"`
	Price           decimal.Decimal `json:"price" validate:"required,gt=0,lt=1000000000000"`
	Total           decimal.Decimal `json:"total" validate:"required,gt=0,lt=100000000000000"`
}

// LineTotal is quantity times unit price.
func LineTotal(quantity int, price decimal.Decimal) decimal.Decimal {
	return price.Mul(decimal.NewFromInt(int64(quantity)))
}

type ProductSales struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	TotalSold int64  `json:"total_sold"`
}

type DashboardSummary struct {
	TodayRevenue       decimal.Decimal `json:"today_revenue"`
	WeekRevenue        decimal.Decimal `json:"week_revenue"`
	MonthRevenue       decimal.Decimal `json:"month_revenue"`
	TotalUnitsSold     int64           `json:"total_units_sold"`
	ProductSales       []ProductSales  `json:"product_sales"`
	BestSellingProduct *string         `json:"best_selling_product"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type Actor struct {
	Username string
}

type MessageResponse struct {
	Message string `json:"message"`
}
