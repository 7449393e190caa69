// Package httpapi exposes the portal over JSON HTTP. Handlers decode, call
// the service and encode; authorization and CSRF live in middleware here.
package httpapi

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"roza/backend/internal/domain"
	"roza/backend/internal/ledgersource"
	"roza/backend/internal/service"
	"roza/backend/internal/store"
)

const maxBodyBytes = 10 << 20

type API struct {
	svc           *service.Service
	auth          *AuthManager
	allowedOrigin string
	csrfSecret    []byte
	limiter       *attemptLimiter
	logger        *log.Logger
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin, csrfSecret string) *API {
	return &API{
		svc:           svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		csrfSecret:    []byte(csrfSecret),
		limiter:       newAttemptLimiter(5, 10*time.Minute),
		logger:        log.New(log.Writer(), "[httpapi] ", log.LstdFlags),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /api/login", a.handleLogin)
	mux.HandleFunc("GET /api/csrf", a.requireAuth(a.handleCSRFToken, domain.RoleAdmin, domain.RoleClient))

	mux.HandleFunc("GET /api/catalog", a.requireAuth(a.handleCatalog, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("GET /api/brands", a.requireAuth(a.handleBrands, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("GET /api/products/{brand}/{article}/quote", a.requireAuth(a.handleProductQuote, domain.RoleAdmin))

	mux.HandleFunc("GET /api/clients", a.requireAuth(a.handleListClients, domain.RoleAdmin))
	mux.HandleFunc("POST /api/clients", a.requireAuth(a.handleCreateClient, domain.RoleAdmin))
	mux.HandleFunc("GET /api/clients/{id}/rules", a.requireAuth(a.handleGetRuleSet, domain.RoleAdmin))
	mux.HandleFunc("PUT /api/clients/{id}/rules", a.requireAuth(a.handleSaveRuleSet, domain.RoleAdmin))

	mux.HandleFunc("POST /api/orders", a.requireAuth(a.handlePlaceOrder, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("GET /api/orders", a.requireAuth(a.handleListOrders, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("GET /api/orders/{id}", a.requireAuth(a.handleGetOrder, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("PATCH /api/orders/{id}/fulfillment", a.requireAuth(a.handleUpdateFulfillment, domain.RoleAdmin))
	mux.HandleFunc("POST /api/orders/{id}/archive", a.requireAuth(a.handleArchiveOrder, domain.RoleAdmin))

	mux.HandleFunc("GET /api/settlements", a.requireAuth(a.handleStatement, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("POST /api/settlements/sync", a.requireAuth(a.handleSettlementSync, domain.RoleAdmin))

	mux.HandleFunc("GET /api/exchange-rate", a.requireAuth(a.handleGetExchangeRate, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("PUT /api/exchange-rate", a.requireAuth(a.handleSetExchangeRate, domain.RoleAdmin))

	mux.HandleFunc("POST /api/price-lists/{supplier}", a.requireAuth(a.handleImportPriceList, domain.RoleAdmin))

	mux.HandleFunc("GET /api/exports/catalog.csv", a.requireAuth(a.handleExportCatalog, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("GET /api/exports/orders.csv", a.requireAuth(a.handleExportOrders, domain.RoleAdmin, domain.RoleClient))
	mux.HandleFunc("GET /api/exports/settlements.csv", a.requireAuth(a.handleExportSettlements, domain.RoleAdmin, domain.RoleClient))

	return a.withLogging(a.withCORS(mux))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		a.logger.Printf("%s %s -> %d (%s)", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}

func (a *API) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-CSRF-Token")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		next.ServeHTTP(w, r)
	})
}

// requireAuth verifies the bearer token, checks the role list and, for
// mutating methods, the CSRF token. The actor lands in the request context.
func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		actor, err := a.auth.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		allowed := false
		for _, role := range roles {
			if actor.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			writeError(w, http.StatusForbidden, "insufficient role")
			return
		}
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if !a.validCSRFToken(r.Header.Get("X-CSRF-Token")) {
				writeError(w, http.StatusForbidden, "missing or stale csrf token")
				return
			}
		}
		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

// CSRF tokens are an HMAC over the current hour bucket; the previous bucket
// stays valid so tokens do not expire mid-request at the turn of the hour.
func (a *API) csrfToken(bucket int64) string {
	mac := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(mac, "%d", bucket)
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *API) validCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	bucket := time.Now().Unix() / 3600
	for _, b := range []int64{bucket, bucket - 1} {
		if hmac.Equal([]byte(token), []byte(a.csrfToken(b))) {
			return true
		}
	}
	return false
}

func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"csrf_token": a.csrfToken(time.Now().Unix() / 3600),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	key := strings.ToLower(strings.TrimSpace(req.Username))
	if !a.limiter.allow(key) {
		writeError(w, http.StatusTooManyRequests, "too many failed attempts, try again later")
		return
	}
	resp, err := a.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		a.limiter.fail(key)
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		a.serveError(w, err)
		return
	}
	a.limiter.reset(key)
	writeJSON(w, http.StatusOK, resp)
}

// clientIDFor resolves which client a request acts on: client actors are
// pinned to their own client id, admins pass ?client_id=.
func clientIDFor(r *http.Request) (string, error) {
	actor, _ := service.ActorFromContext(r.Context())
	if actor.Role == domain.RoleClient {
		return actor.ClientID, nil
	}
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		return "", fmt.Errorf("%w: client_id is required", store.ErrInvalidInput)
	}
	return clientID, nil
}

func (a *API) handleCatalog(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDFor(r)
	if err != nil {
		a.serveError(w, err)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	query := domain.CatalogQuery{
		Brand:             q.Get("brand"),
		Article:           q.Get("article"),
		Category:          q.Get("category"),
		HideZeroStock:     q.Get("hide_zero_stock") == "true",
		HidePartnerOffers: q.Get("hide_partner_offers") == "true",
		Currency:          q.Get("currency"),
		Cursor:            q.Get("cursor"),
		Limit:             limit,
	}
	resp, err := a.svc.Catalog(r.Context(), clientID, query)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleBrands(w http.ResponseWriter, r *http.Request) {
	brands, err := a.svc.Brands(r.Context())
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"brands": brands})
}

func (a *API) handleProductQuote(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	if clientID == "" {
		writeError(w, http.StatusBadRequest, "client_id is required")
		return
	}
	resp, err := a.svc.ProductQuote(r.Context(), clientID,
		r.PathValue("brand"), r.PathValue("article"), r.URL.Query().Get("currency"))
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := a.svc.ListClients(r.Context())
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.ClientListResponse{Clients: clients})
}

func (a *API) handleCreateClient(w http.ResponseWriter, r *http.Request) {
	var req domain.ClientCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	client, err := a.svc.CreateClient(r.Context(), req)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, client)
}

func (a *API) handleGetRuleSet(w http.ResponseWriter, r *http.Request) {
	rs, err := a.svc.GetRuleSet(r.Context(), r.PathValue("id"))
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rs)
}

func (a *API) handleSaveRuleSet(w http.ResponseWriter, r *http.Request) {
	var ruleSet domain.PricingRuleSet
	if err := decodeJSON(r, &ruleSet); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ruleSet.ClientID = r.PathValue("id")
	if err := a.svc.SaveRuleSet(r.Context(), ruleSet); err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (a *API) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req domain.OrderCreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if actor, _ := service.ActorFromContext(r.Context()); actor.Role == domain.RoleClient {
		req.ClientID = actor.ClientID
	}
	order, err := a.svc.PlaceOrder(r.Context(), req)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, domain.OrderResponse{Order: *order})
}

func (a *API) handleListOrders(w http.ResponseWriter, r *http.Request) {
	actor, _ := service.ActorFromContext(r.Context())
	clientID := r.URL.Query().Get("client_id")
	if actor.Role == domain.RoleClient {
		clientID = actor.ClientID
	}
	includeArchived := r.URL.Query().Get("archived") == "true"
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	orders, err := a.svc.ListOrders(r.Context(), clientID, includeArchived, limit)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderListResponse{Orders: orders})
}

// loadOrderFor fetches an order and enforces that client actors only see
// their own orders.
func (a *API) loadOrderFor(r *http.Request) (*domain.Order, error) {
	order, err := a.svc.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if actor, _ := service.ActorFromContext(r.Context()); actor.Role == domain.RoleClient && order.ClientID != actor.ClientID {
		return nil, fmt.Errorf("%w: order %s", store.ErrNotFound, order.ID)
	}
	return order, nil
}

func (a *API) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := a.loadOrderFor(r)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderResponse{Order: *order})
}

func (a *API) handleUpdateFulfillment(w http.ResponseWriter, r *http.Request) {
	var req domain.FulfillmentUpdateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := a.svc.UpdateFulfillment(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderResponse{Order: *order})
}

func (a *API) handleArchiveOrder(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Archived bool `json:"archived"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	order, err := a.svc.ArchiveOrder(r.Context(), r.PathValue("id"), req.Archived)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, domain.OrderResponse{Order: *order})
}

func (a *API) handleStatement(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDFor(r)
	if err != nil {
		a.serveError(w, err)
		return
	}
	stmt, err := a.svc.Statement(r.Context(), clientID,
		r.URL.Query().Get("currency"), r.URL.Query().Get("full") == "true")
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stmt)
}

func (a *API) handleSettlementSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID string `json:"client_id"`
		Currency string `json:"currency"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	resp, err := a.svc.SyncSettlementWindow(r.Context(), req.ClientID, req.Currency)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleGetExchangeRate(w http.ResponseWriter, r *http.Request) {
	rate, err := a.svc.ExchangeRate(r.Context())
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (a *API) handleSetExchangeRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate decimal.Decimal `json:"rate"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if !req.Rate.IsPositive() {
		writeError(w, http.StatusBadRequest, "rate must be positive")
		return
	}
	rate, err := a.svc.SetExchangeRate(r.Context(), req.Rate)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rate)
}

func (a *API) handleImportPriceList(w http.ResponseWriter, r *http.Request) {
	resp, err := a.svc.ImportPriceList(r.Context(), r.PathValue("supplier"), r.Body)
	if err != nil {
		a.serveError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *API) handleExportCatalog(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDFor(r)
	if err != nil {
		a.serveError(w, err)
		return
	}
	q := r.URL.Query()
	query := domain.CatalogQuery{
		Brand:             q.Get("brand"),
		Article:           q.Get("article"),
		Category:          q.Get("category"),
		HideZeroStock:     q.Get("hide_zero_stock") == "true",
		HidePartnerOffers: q.Get("hide_partner_offers") == "true",
		Currency:          q.Get("currency"),
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="catalog.csv"`)
	if err := a.svc.WriteCatalogCSV(r.Context(), w, clientID, query); err != nil {
		a.logger.Printf("export catalog for %s: %v", clientID, err)
	}
}

func (a *API) handleExportOrders(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDFor(r)
	if err != nil {
		a.serveError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="orders.csv"`)
	includeArchived := r.URL.Query().Get("archived") == "true"
	if err := a.svc.WriteOrdersCSV(r.Context(), w, clientID, includeArchived); err != nil {
		a.logger.Printf("export orders for %s: %v", clientID, err)
	}
}

func (a *API) handleExportSettlements(w http.ResponseWriter, r *http.Request) {
	clientID, err := clientIDFor(r)
	if err != nil {
		a.serveError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="settlements.csv"`)
	full := r.URL.Query().Get("full") == "true"
	if err := a.svc.WriteSettlementCSV(r.Context(), w, clientID, r.URL.Query().Get("currency"), full); err != nil {
		a.logger.Printf("export settlements for %s: %v", clientID, err)
	}
}

// serveError maps domain errors onto status codes; everything unexpected is a
// logged 500 with a generic body.
func (a *API) serveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, ledgersource.ErrDisabled):
		writeError(w, http.StatusServiceUnavailable, "ledger source is not configured")
	default:
		a.logger.Printf("internal error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// attemptLimiter counts failed logins per key and blocks further attempts for
// a cooldown once the threshold is hit.
type attemptLimiter struct {
	mu       sync.Mutex
	max      int
	cooldown time.Duration
	attempts map[string]*attemptState
}

type attemptState struct {
	count     int
	blockedAt time.Time
}

func newAttemptLimiter(max int, cooldown time.Duration) *attemptLimiter {
	return &attemptLimiter{
		max:      max,
		cooldown: cooldown,
		attempts: map[string]*attemptState{},
	}
}

func (l *attemptLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.attempts[key]
	if !ok || state.count < l.max {
		return true
	}
	if time.Since(state.blockedAt) >= l.cooldown {
		delete(l.attempts, key)
		return true
	}
	return false
}

func (l *attemptLimiter) fail(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.attempts[key]
	if !ok {
		state = &attemptState{}
		l.attempts[key] = state
	}
	state.count++
	if state.count >= l.max {
		state.blockedAt = time.Now()
	}
}

func (l *attemptLimiter) reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.attempts, key)
}
