package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"omset/backend/internal/domain"
	"omset/backend/internal/limiter"
	"omset/backend/internal/report"
	"omset/backend/internal/service"
	"omset/backend/internal/store"
)

const maxBodyBytes = 1 << 20

type API struct {
	service       *service.Service
	auth          Authenticator
	allowedOrigin string
	loginLimiter  limiter.Limiter
	apiLimiter    limiter.Limiter
	now           func() time.Time
}

type Options struct {
	AllowedOrigin string
	// LoginLimiter defaults to 5 attempts per minute per client.
	LoginLimiter limiter.Limiter
	// APILimiter throttles every /api request; nil disables it.
	APILimiter limiter.Limiter
}

func New(svc *service.Service, auth Authenticator, opts Options) *API {
	if opts.LoginLimiter == nil {
		opts.LoginLimiter = limiter.NewWindow(5, time.Minute)
	}

	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		loginLimiter:  opts.LoginLimiter,
		apiLimiter:    opts.APILimiter,
		now:           time.Now,
	}
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(recoverer)
	r.Use(requestLogger)
	r.Use(a.securityHeaders)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, errors.New("not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeMethodNotAllowed(w)
	})

	r.Get("/healthz", a.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(a.rateLimit)

		r.Post("/login", a.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/products", a.handleListProducts)
			r.Post("/products", a.handleCreateProduct)
			r.Put("/products/{id}", a.handleUpdateProduct)
			r.Delete("/products/{id}", a.handleDeleteProduct)

			r.Get("/transactions", a.handleListTransactions)
			r.Post("/transactions", a.handleCreateTransaction)
			r.Get("/transactions/export.xlsx", a.handleExportXLSX)
			r.Get("/transactions/export.pdf", a.handleExportPDF)
			r.Put("/transactions/{id}", a.handleUpdateTransaction)
			r.Delete("/transactions/{id}", a.handleDeleteTransaction)

			r.Get("/dashboard", a.handleDashboard)
		})
	})

	return r
}

func (a *API) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(service.WithActor(r.Context(), actor)))
	})
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": a.now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	allowed, err := a.loginLimiter.Allow(r.Context(), clientKey(r))
	if err != nil {
		// a limiter outage must not lock the admin out
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("login limiter unavailable")
		allowed = true
	}
	if !allowed {
		writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.service.ListProducts(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (a *API) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req domain.ProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	product, err := a.service.CreateProduct(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "product")
		return
	}
	writeJSON(w, http.StatusCreated, product)
}

func (a *API) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	var req domain.ProductRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := a.service.UpdateProduct(r.Context(), id, req); err != nil {
		writeServiceError(w, r, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, domain.MessageResponse{Message: "product updated"})
}

func (a *API) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "product")
	if !ok {
		return
	}

	if err := a.service.DeleteProduct(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "product")
		return
	}
	writeJSON(w, http.StatusOK, domain.MessageResponse{Message: "product deleted"})
}

func (a *API) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	ledger, err := a.service.ListTransactions(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "transaction")
		return
	}
	writeJSON(w, http.StatusOK, ledger)
}

func (a *API) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req domain.TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := a.service.CreateTransaction(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err, "transaction")
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (a *API) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction")
	if !ok {
		return
	}

	var req domain.TransactionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if _, err := a.service.UpdateTransaction(r.Context(), id, req); err != nil {
		writeServiceError(w, r, err, "transaction")
		return
	}
	writeJSON(w, http.StatusOK, domain.MessageResponse{Message: "transaction updated"})
}

func (a *API) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "transaction")
	if !ok {
		return
	}

	if err := a.service.DeleteTransaction(r.Context(), id); err != nil {
		writeServiceError(w, r, err, "transaction")
		return
	}
	writeJSON(w, http.StatusOK, domain.MessageResponse{Message: "transaction deleted"})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	summary, err := a.service.Dashboard(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "dashboard")
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (a *API) handleExportXLSX(w http.ResponseWriter, r *http.Request) {
	a.writeExport(w, r, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		func(out io.Writer, ledger []domain.TransactionView) error {
			return report.WriteXLSX(out, ledger)
		})
}

func (a *API) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	a.writeExport(w, r, "pdf", "application/pdf",
		func(out io.Writer, ledger []domain.TransactionView) error {
			return report.WritePDF(out, ledger, a.now().In(a.service.Location()))
		})
}

// writeExport renders into memory first so a failed render still gets a clean 500.
func (a *API) writeExport(w http.ResponseWriter, r *http.Request, ext string, contentType string, render func(io.Writer, []domain.TransactionView) error) {
	ledger, err := a.service.ListTransactions(r.Context())
	if err != nil {
		writeServiceError(w, r, err, "transaction")
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, ledger); err != nil {
		writeServiceError(w, r, fmt.Errorf("render %s report: %w", ext, err), "report")
		return
	}

	filename := fmt.Sprintf("sales-report-%s.%s", a.now().In(a.service.Location()).Format(domain.DateLayout), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// pathID parses {id}. A malformed id cannot name a row, so it is reported as 404.
func pathID(w http.ResponseWriter, r *http.Request, entity string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(chi.URLParam(r, "id")), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, fmt.Errorf("%s not found", entity))
		return 0, false
	}
	return id, true
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr):
			return errors.New("request body too large")
		case errors.Is(err, io.EOF):
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// writeServiceError maps store/service errors onto status codes.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error, entity string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Errorf("%s not found", entity))
	default:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("entity", entity).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"error": "internal server error",
		})
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; 4xx messages are user-facing.
	msg := err.Error()
	if status >= 500 {
		log.Error().Err(err).Int("status", status).Msg("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
