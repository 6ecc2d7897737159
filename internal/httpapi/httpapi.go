package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"storefront/internal/checkout"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/service"
	"storefront/internal/session"
	"storefront/internal/store"
)

type API struct {
	service         *service.Service
	sessions        *SessionManager
	metrics         *metrics.Registry
	logger          *zap.Logger
	allowedOrigin   string
	checkoutLimiter *attemptLimiter
}

func New(svc *service.Service, sessions *SessionManager, reg *metrics.Registry, logger *zap.Logger, allowedOrigin string) *API {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &API{
		service:         svc,
		sessions:        sessions,
		metrics:         reg,
		logger:          logger,
		allowedOrigin:   allowedOrigin,
		checkoutLimiter: newAttemptLimiter(20, time.Minute),
	}
}

type attemptLimiter struct {
	mu        sync.Mutex
	max       int
	window    time.Duration
	entries   map[string][]time.Time
	now       func() time.Time
	lastSweep time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time), now: time.Now}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := l.now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	// at most once per window, drop clients that have gone quiet
	if now.Sub(l.lastSweep) >= l.window {
		for k, history := range l.entries {
			if len(history) == 0 || !history[len(history)-1].After(cutoff) {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	kept = append(kept, now)
	l.entries[key] = kept
	return true
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
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)
	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics.Handler())
	}

	mux.HandleFunc("/api/v1/search", a.handleSearch)
	mux.HandleFunc("/api/v1/content", a.handleContent)
	mux.HandleFunc("/api/v1/facets/toggle", a.handleFacetToggle)
	mux.HandleFunc("/api/v1/products/", a.handleProduct)

	mux.HandleFunc("/api/v1/session/csrf-token", a.withSession(a.handleCSRFToken))
	mux.HandleFunc("/api/v1/cart", a.withSession(a.handleCart))
	mux.HandleFunc("/api/v1/cart/items/", a.withSession(a.handleCartItem))
	mux.HandleFunc("/api/v1/checkout", a.withSession(a.handleCheckout))
	mux.HandleFunc("/api/v1/checkout/proceed", a.withSession(a.handleCheckoutProceed))
	mux.HandleFunc("/api/v1/checkout/billing", a.withSession(a.limited(a.handleCheckoutBilling)))
	mux.HandleFunc("/api/v1/checkout/confirm", a.withSession(a.limited(a.handleCheckoutConfirm)))
	mux.HandleFunc("/api/v1/orders", a.withSession(a.handleOrders))

	return a.withMiddleware(mux)
}

// withSession resolves the visitor session and enforces the CSRF token on
// state-changing methods.
func (a *API) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sid, err := a.sessions.Resolve(w, r)
		if err != nil {
			a.writeError(w, http.StatusInternalServerError, err)
			return
		}
		if isMutating(r.Method) {
			token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
			if !a.sessions.ValidCSRFToken(sid, token) {
				a.writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
				return
			}
		}
		next(w, r.WithContext(withSessionID(r.Context(), sid)))
	}
}

func (a *API) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && !a.checkoutLimiter.Allow(clientKey(r)) {
			a.writeError(w, http.StatusTooManyRequests, errors.New("too many checkout attempts"))
			return
		}
		next(w, r)
	}
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleCSRFToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	sid, _ := SessionIDFromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.sessions.CSRFToken(sid),
	})
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	page, err := a.service.SearchProducts(r.Context(), strings.TrimSpace(r.URL.Query().Get("path")), r.URL.Query())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleContent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	page, err := a.service.SearchContent(r.Context(), strings.TrimSpace(r.URL.Query().Get("path")), r.URL.Query())
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (a *API) handleFacetToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.FacetToggleRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.service.ToggleFacet(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleProduct(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/products/"), "/")
	if id == "" || strings.Contains(id, "/") {
		a.writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}
	product, err := a.service.GetProduct(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product": product})
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	sid, _ := SessionIDFromContext(r.Context())

	switch r.Method {
	case http.MethodGet:
		c, err := a.service.Cart(r.Context(), sid)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cartPayload(c))
	case http.MethodPost:
		var req domain.CartAddRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		c, err := a.service.AddToCart(r.Context(), sid, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cartPayload(c))
	case http.MethodDelete:
		if err := a.service.ClearCart(r.Context(), sid); err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cartPayload(domain.Cart{Items: []domain.CartItem{}}))
	default:
		a.writeMethodNotAllowed(w)
	}
}

func (a *API) handleCartItem(w http.ResponseWriter, r *http.Request) {
	sid, _ := SessionIDFromContext(r.Context())
	productID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/cart/items/"), "/")
	if productID == "" || strings.Contains(productID, "/") {
		a.writeError(w, http.StatusNotFound, errors.New("not found"))
		return
	}

	switch r.Method {
	case http.MethodPatch:
		var req domain.CartUpdateRequest
		if err := decodeJSON(r, &req); err != nil {
			a.writeError(w, http.StatusBadRequest, err)
			return
		}
		c, err := a.service.UpdateCartItem(r.Context(), sid, productID, req)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cartPayload(c))
	case http.MethodDelete:
		c, err := a.service.RemoveCartItem(r.Context(), sid, productID)
		if err != nil {
			a.writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cartPayload(c))
	default:
		a.writeMethodNotAllowed(w)
	}
}

func cartPayload(c domain.Cart) map[string]any {
	return map[string]any{
		"cart":           c,
		"item_count":     c.ItemCount(),
		"subtotal_cents": c.SubtotalCents(),
	}
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	sid, _ := SessionIDFromContext(r.Context())
	view, err := a.service.CheckoutView(r.Context(), sid)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckoutProceed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	sid, _ := SessionIDFromContext(r.Context())
	view, err := a.service.ProceedToBilling(r.Context(), sid)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckoutBilling(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	var req domain.BillingRequest
	if err := decodeJSON(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}
	sid, _ := SessionIDFromContext(r.Context())
	view, err := a.service.SubmitBilling(r.Context(), sid, req)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleCheckoutConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	sid, _ := SessionIDFromContext(r.Context())
	view, err := a.service.ConfirmOrder(r.Context(), sid)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *API) handleOrders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	sid, _ := SessionIDFromContext(r.Context())
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 20, 50)
	orders, err := a.service.ListOrders(r.Context(), sid, limit)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if a.metrics != nil {
			a.metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		}
		a.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("took", time.Since(startedAt)),
		)
	})
}

func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	var verr *checkout.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Fields,
		})
	case errors.Is(err, store.ErrInvalidInput), errors.Is(err, session.ErrInvalidSession):
		a.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, checkout.ErrInvalidTransition), errors.Is(err, checkout.ErrEmptyCart):
		a.writeError(w, http.StatusConflict, err)
	default:
		a.writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx messages are replaced so storage and driver errors never reach clients.
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("internal error", zap.Int("status", status), zap.Error(err))
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
