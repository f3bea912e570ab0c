// Package server exposes the vault over HTTP/JSON and runs the gRPC health
// endpoint. State-changing routes call the settlement engine directly;
// read routes are served from the Postgres projections.
package server

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"IntentVault/internal/connector"
	"IntentVault/internal/engine"
	"IntentVault/internal/errs"
	"IntentVault/internal/model"
	"IntentVault/internal/observability"
	"IntentVault/internal/query"
)

type HTTPServer struct {
	engine  *engine.Engine
	queries *query.Service
	health  *observability.HealthChecker
	log     zerolog.Logger
}

func NewHTTPServer(eng *engine.Engine, queries *query.Service, health *observability.HealthChecker, log zerolog.Logger) *HTTPServer {
	return &HTTPServer{engine: eng, queries: queries, health: health, log: log}
}

func (s *HTTPServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", s.health.LivenessHandler)
	r.Get("/readyz", s.health.ReadinessHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/deposits", s.deposit)
		r.Post("/withdrawals", s.withdraw)

		r.Post("/intents", s.createIntent)
		r.Post("/intents/{id}/execute", s.executeIntent)
		r.Post("/intents/{id}/cancel", s.cancelIntent)
		r.Get("/intents/{id}/executable", s.checkExecutable)

		r.Get("/balances", s.getBalance)
		r.Get("/intents/{id}", s.getIntent)
		r.Get("/users/{creator}/intents", s.listUserIntents)

		r.Get("/quote", s.getQuote)
		r.Get("/prices/{token}", s.getTokenPrice)
		r.Get("/prices/{sell}/{buy}/cross", s.getCrossRate)
		r.Get("/prices/{token}/twap", s.getTokenTWAP)
		r.Get("/oracle/assets", s.getOracleAssets)
		r.Get("/oracle/decimals", s.getOracleDecimals)

		r.Post("/admin/intents/{id}/cancel", s.adminCancelIntent)
		r.Get("/admin", s.getAdmin)
		r.Get("/admin/router", s.getRouter)
		r.Get("/admin/oracle", s.getOracle)
		r.Post("/admin/router", s.setRouter)
		r.Post("/admin/oracle", s.setOracle)
	})

	return r
}

// ── State-changing routes ────────────────────────────

type transferBody struct {
	Owner  string `json:"owner"`
	Token  string `json:"token"`
	Amount string `json:"amount"`
	To     string `json:"to,omitempty"`
}

func (s *HTTPServer) deposit(w http.ResponseWriter, r *http.Request) {
	var req transferBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	amount, ok := model.ParseAmount(req.Amount)
	if !ok {
		jsonErr(w, http.StatusBadRequest, "invalid amount")
		return
	}

	if err := s.engine.Deposit(r.Context(), model.Address(req.Owner), model.Token(req.Token), amount); err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "ok"})
}

func (s *HTTPServer) withdraw(w http.ResponseWriter, r *http.Request) {
	var req transferBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	amount, ok := model.ParseAmount(req.Amount)
	if !ok {
		jsonErr(w, http.StatusBadRequest, "invalid amount")
		return
	}
	to := model.Address(req.To)
	if to == "" {
		to = model.Address(req.Owner)
	}

	if err := s.engine.Withdraw(r.Context(), model.Address(req.Owner), model.Token(req.Token), amount, to); err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "ok"})
}

type createIntentBody struct {
	Creator      string `json:"creator"`
	SellToken    string `json:"sell_token"`
	SellAmount   string `json:"sell_amount"`
	BuyToken     string `json:"buy_token"`
	MinBuyAmount string `json:"min_buy_amount"`
	TargetPrice  string `json:"target_price"`
	Incentive    string `json:"incentive"`
	Expiry       int64  `json:"expiry"`
}

func (s *HTTPServer) createIntent(w http.ResponseWriter, r *http.Request) {
	var req createIntentBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	fields := map[string]string{
		"sell_amount":    req.SellAmount,
		"min_buy_amount": req.MinBuyAmount,
		"target_price":   req.TargetPrice,
		"incentive":      req.Incentive,
	}
	parsed := make(map[string]*big.Int, len(fields))
	for name, raw := range fields {
		v, ok := model.ParseAmount(raw)
		if !ok {
			jsonErr(w, http.StatusBadRequest, "invalid "+name)
			return
		}
		parsed[name] = v
	}

	id, err := s.engine.CreateIntent(r.Context(), engine.CreateParams{
		Creator:      model.Address(req.Creator),
		SellToken:    model.Token(req.SellToken),
		SellAmount:   parsed["sell_amount"],
		BuyToken:     model.Token(req.BuyToken),
		MinBuyAmount: parsed["min_buy_amount"],
		TargetPrice:  parsed["target_price"],
		Incentive:    parsed["incentive"],
		Expiry:       req.Expiry,
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]uint64{"intent_id": id})
}

type executeBody struct {
	Executor  string `json:"executor"`
	BuyAmount string `json:"buy_amount"`
}

func (s *HTTPServer) executeIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req executeBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}
	buyAmount, okAmt := model.ParseAmount(req.BuyAmount)
	if !okAmt {
		jsonErr(w, http.StatusBadRequest, "invalid buy_amount")
		return
	}

	if err := s.engine.ExecuteIntent(r.Context(), id, model.Address(req.Executor), buyAmount); err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "executed"})
}

type cancelBody struct {
	Caller string `json:"caller"`
}

func (s *HTTPServer) cancelIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req cancelBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.engine.CancelIntent(r.Context(), id, model.Address(req.Caller)); err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "cancelled"})
}

func (s *HTTPServer) adminCancelIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req cancelBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := s.engine.AdminCancelIntent(r.Context(), id, model.Address(req.Caller)); err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"status": "cancelled"})
}

func (s *HTTPServer) checkExecutable(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	executable, rate, err := s.engine.CheckIntentExecutable(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]interface{}{
		"executable": executable,
		"cross_rate": rate.String(),
	})
}

// ── Read routes ──────────────────────────────────────

func (s *HTTPServer) getBalance(w http.ResponseWriter, r *http.Request) {
	owner := r.URL.Query().Get("owner")
	token := r.URL.Query().Get("token")
	if owner == "" || token == "" {
		jsonErr(w, http.StatusBadRequest, "owner and token required")
		return
	}

	resp, err := s.queries.GetBalance(r.Context(), owner, token)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, resp)
}

func (s *HTTPServer) getIntent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	resp, err := s.queries.GetIntent(r.Context(), id)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, resp)
}

func (s *HTTPServer) listUserIntents(w http.ResponseWriter, r *http.Request) {
	creator := chi.URLParam(r, "creator")

	var status *string
	if v := r.URL.Query().Get("status"); v != "" {
		status = &v
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	var afterID *uint64
	if v := r.URL.Query().Get("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			jsonErr(w, http.StatusBadRequest, "invalid after cursor")
			return
		}
		afterID = &n
	}

	resp, err := s.queries.ListUserIntents(r.Context(), creator, status, limit, afterID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, resp)
}

// ── Oracle and router routes ─────────────────────────

func (s *HTTPServer) getQuote(w http.ResponseWriter, r *http.Request) {
	sell := r.URL.Query().Get("sell_token")
	buy := r.URL.Query().Get("buy_token")
	amount, ok := model.ParseAmount(r.URL.Query().Get("amount"))
	if sell == "" || buy == "" || !ok {
		jsonErr(w, http.StatusBadRequest, "sell_token, buy_token and amount required")
		return
	}

	out, err := s.engine.GetPriceQuote(r.Context(), model.Token(sell), model.Token(buy), amount)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"amount_out": out.String()})
}

func (s *HTTPServer) getTokenPrice(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	pd, err := s.engine.GetTokenPrice(r.Context(), model.Token(token))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]interface{}{
		"token":     token,
		"price":     pd.Price.String(),
		"timestamp": pd.Timestamp,
	})
}

func (s *HTTPServer) getCrossRate(w http.ResponseWriter, r *http.Request) {
	sell := chi.URLParam(r, "sell")
	buy := chi.URLParam(r, "buy")

	pd, err := s.engine.GetTokenCrossRate(r.Context(), model.Token(sell), model.Token(buy))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]interface{}{
		"sell_token": sell,
		"buy_token":  buy,
		"price":      pd.Price.String(),
		"timestamp":  pd.Timestamp,
	})
}

func (s *HTTPServer) getTokenTWAP(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	records := uint32(5)
	if v := r.URL.Query().Get("records"); v != "" {
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			jsonErr(w, http.StatusBadRequest, "invalid records")
			return
		}
		records = uint32(n)
	}

	twap, err := s.engine.GetTokenTWAP(r.Context(), model.Token(token), records)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]interface{}{
		"token":   token,
		"twap":    twap.String(),
		"records": records,
	})
}

func (s *HTTPServer) getOracleAssets(w http.ResponseWriter, r *http.Request) {
	assets, err := s.engine.GetOracleSupportedAssets(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}

	names := make([]string, 0, len(assets))
	for _, a := range assets {
		names = append(names, a.String())
	}
	json200(w, map[string]interface{}{"assets": names})
}

func (s *HTTPServer) getOracleDecimals(w http.ResponseWriter, r *http.Request) {
	dec, err := s.engine.GetOracleDecimals(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]uint32{"decimals": dec})
}

// ── Admin routes ─────────────────────────────────────

func (s *HTTPServer) getAdmin(w http.ResponseWriter, r *http.Request) {
	json200(w, map[string]string{"admin": string(s.engine.Admin())})
}

func (s *HTTPServer) getRouter(w http.ResponseWriter, r *http.Request) {
	json200(w, map[string]string{"router": s.engine.Router()})
}

func (s *HTTPServer) getOracle(w http.ResponseWriter, r *http.Request) {
	json200(w, map[string]string{"oracle": s.engine.OracleAddr()})
}

type setAddrBody struct {
	Caller  string `json:"caller"`
	Address string `json:"address"`
}

func (s *HTTPServer) setRouter(w http.ResponseWriter, r *http.Request) {
	var req setAddrBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	venue, err := connector.NewSwapVenueClient(req.Address, 0)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid router address")
		return
	}
	if err := s.engine.SetRouter(model.Address(req.Caller), req.Address, venue); err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"router": req.Address})
}

func (s *HTTPServer) setOracle(w http.ResponseWriter, r *http.Request) {
	var req setAddrBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid json")
		return
	}

	oracle, err := connector.NewOracleClient(req.Address, 0)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid oracle address")
		return
	}
	if err := s.engine.SetOracle(model.Address(req.Caller), req.Address, oracle); err != nil {
		s.writeErr(w, err)
		return
	}
	json200(w, map[string]string{"oracle": req.Address})
}

// ── Helpers ──────────────────────────────────────────

func pathID(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid intent id")
		return 0, false
	}
	return id, true
}

// writeErr maps sentinel errors to HTTP statuses. The body carries the
// stable error code plus the full message.
func (s *HTTPServer) writeErr(w http.ResponseWriter, err error) {
	code := errs.Code(err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errs.ErrInvalidAmount),
		errors.Is(err, errs.ErrInvalidPrice),
		errors.Is(err, errs.ErrInvalidToken),
		errors.Is(err, errs.ErrMinBuyAmountNotMet):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized),
		errors.Is(err, errs.ErrOnlyCreatorCanCancel):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrIntentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrIntentAlreadyExecuted),
		errors.Is(err, errs.ErrIntentCancelled),
		errors.Is(err, errs.ErrIntentExpired),
		errors.Is(err, errs.ErrIntentStillActive),
		errors.Is(err, errs.ErrInsufficientBalance),
		errors.Is(err, errs.ErrPriceConditionNotMet):
		status = http.StatusConflict
	case errors.Is(err, errs.ErrTransferFailed),
		errors.Is(err, errs.ErrPriceUnavailable):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"code":  code,
		"error": err.Error(),
	})
}

func json200(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonErr(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
