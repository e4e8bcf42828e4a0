package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/predictfi/gomarket/internal/contracts"
	"github.com/predictfi/gomarket/internal/market"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps orchestrator error kinds onto HTTP statuses: bad input is
// the caller's fault, chain trouble is upstream's.
func statusFor(err error) int {
	var preErr *market.PreconditionError
	var revertErr *market.ExecutionRevertedError
	if errors.As(err, &preErr) {
		return http.StatusBadRequest
	}
	if errors.As(err, &revertErr) {
		return http.StatusConflict
	}
	return http.StatusBadGateway
}

func parseAmount(raw string) (*big.Int, bool) {
	if raw == "" {
		return nil, false
	}
	v, ok := new(big.Int).SetString(raw, 10)
	return v, ok
}

func parseAddress(raw string) (common.Address, bool) {
	if !common.IsHexAddress(raw) {
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// runIntent journals the submission around the orchestrator call. The journal
// row is best-effort; a failed write is logged, never blocks the intent
// result.
func (s *Server) runIntent(ctx context.Context, intent string, params any,
	run func(ctx context.Context) (*market.Result, *common.Address, error)) (*market.Result, *common.Address, error) {

	paramsJSON, _ := json.Marshal(params)
	id, jerr := s.insertSubmissionStart(ctx, intent, string(paramsJSON))
	if jerr != nil {
		s.log.Warnf("journal insert failed: %v", jerr)
	}

	res, marketAddr, err := run(ctx)

	var txHash, marketHex, errMsg *string
	if res != nil {
		v := res.TxHash.Hex()
		txHash = &v
	}
	if marketAddr != nil {
		v := marketAddr.Hex()
		marketHex = &v
	}
	if err != nil {
		v := err.Error()
		errMsg = &v
	}
	if jerr == nil {
		if ferr := s.finishSubmission(ctx, id, txHash, marketHex, errMsg); ferr != nil {
			s.log.Warnf("journal update failed: %v", ferr)
		}
	}
	return res, marketAddr, err
}

type buyRequest struct {
	Market       string `json:"market"`
	Amount       string `json:"amount"`
	OutcomeIndex uint   `json:"outcome_index"`
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	marketAddr, ok := parseAddress(req.Market)
	if !ok {
		writeError(w, http.StatusBadRequest, "market is not a valid address")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount must be a base-10 integer")
		return
	}

	ref, err := s.intents.ResolveMarket(r.Context(), marketAddr)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	res, _, err := s.runIntent(r.Context(), "buy", req, func(ctx context.Context) (*market.Result, *common.Address, error) {
		res, err := s.intents.Buy(ctx, market.BuyParams{Market: ref, Amount: amount, OutcomeIndex: req.OutcomeIndex})
		return res, nil, err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": res.TxHash.Hex()})
}

type sellRequest struct {
	Market       string `json:"market"`
	ReturnAmount string `json:"return_amount"`
	OutcomeIndex uint   `json:"outcome_index"`
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	marketAddr, ok := parseAddress(req.Market)
	if !ok {
		writeError(w, http.StatusBadRequest, "market is not a valid address")
		return
	}
	returnAmount, ok := parseAmount(req.ReturnAmount)
	if !ok {
		writeError(w, http.StatusBadRequest, "return_amount must be a base-10 integer")
		return
	}

	ref, err := s.intents.ResolveMarket(r.Context(), marketAddr)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	res, _, err := s.runIntent(r.Context(), "sell", req, func(ctx context.Context) (*market.Result, *common.Address, error) {
		res, err := s.intents.Sell(ctx, market.SellParams{Market: ref, ReturnAmount: returnAmount, OutcomeIndex: req.OutcomeIndex})
		return res, nil, err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": res.TxHash.Hex()})
}

type createMarketRequest struct {
	Collateral           string   `json:"collateral"`
	CollateralIsNative   bool     `json:"collateral_is_native"`
	Funding              string   `json:"funding"`
	FeeBps               string   `json:"fee"`
	Oracle               string   `json:"oracle"`
	QuestionID           string   `json:"question_id,omitempty"`
	QuestionTemplateID   uint     `json:"question_template_id"`
	QuestionText         string   `json:"question_text"`
	QuestionCategory     string   `json:"question_category"`
	QuestionArbitrator   string   `json:"question_arbitrator"`
	QuestionTimeout      uint32   `json:"question_timeout"`
	QuestionOpeningTS    uint32   `json:"question_opening_ts"`
	OutcomeProbabilities []string `json:"outcome_probabilities"`
}

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	funding, ok := parseAmount(req.Funding)
	if !ok {
		writeError(w, http.StatusBadRequest, "funding must be a base-10 integer")
		return
	}
	fee, ok := parseAmount(req.FeeBps)
	if !ok {
		writeError(w, http.StatusBadRequest, "fee must be a base-10 integer")
		return
	}
	probs := make([]decimal.Decimal, 0, len(req.OutcomeProbabilities))
	for i, raw := range req.OutcomeProbabilities {
		p, err := decimal.NewFromString(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "outcome_probabilities["+strconv.Itoa(i)+"] is not a decimal")
			return
		}
		probs = append(probs, p)
	}

	params := market.CreateMarketParams{
		CollateralIsNative: req.CollateralIsNative,
		Funding:            funding,
		Fee:                fee,
		QuestionID:         common.HexToHash(req.QuestionID),
		Question: contracts.QuestionParams{
			TemplateID: req.QuestionTemplateID,
			Question:   req.QuestionText,
			Category:   req.QuestionCategory,
			Arbitrator: common.HexToAddress(req.QuestionArbitrator),
			Timeout:    req.QuestionTimeout,
			OpeningTS:  req.QuestionOpeningTS,
			Nonce:      big.NewInt(0),
		},
		OutcomeProbabilities: probs,
	}
	if !req.CollateralIsNative {
		collateral, ok := parseAddress(req.Collateral)
		if !ok {
			writeError(w, http.StatusBadRequest, "collateral is not a valid address")
			return
		}
		params.Collateral = collateral
	}
	if req.Oracle != "" {
		oracle, ok := parseAddress(req.Oracle)
		if !ok {
			writeError(w, http.StatusBadRequest, "oracle is not a valid address")
			return
		}
		params.Oracle = oracle
	}

	var created *market.CreateMarketResult
	_, marketAddr, err := s.runIntent(r.Context(), "create-market", req, func(ctx context.Context) (*market.Result, *common.Address, error) {
		res, err := s.intents.CreateMarket(ctx, params)
		if err != nil {
			return nil, nil, err
		}
		created = res
		return &res.Result, &res.MarketAddress, nil
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"tx_hash":        created.TxHash.Hex(),
		"market_address": marketAddr.Hex(),
	})
}

type addFundingRequest struct {
	Market             string `json:"market"`
	Amount             string `json:"amount"`
	CollateralIsNative bool   `json:"collateral_is_native"`
}

func (s *Server) handleAddFunding(w http.ResponseWriter, r *http.Request) {
	var req addFundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	marketAddr, ok := parseAddress(req.Market)
	if !ok {
		writeError(w, http.StatusBadRequest, "market is not a valid address")
		return
	}
	amount, ok := parseAmount(req.Amount)
	if !ok {
		writeError(w, http.StatusBadRequest, "amount must be a base-10 integer")
		return
	}

	ref, err := s.intents.ResolveMarket(r.Context(), marketAddr)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	res, _, err := s.runIntent(r.Context(), "add-funding", req, func(ctx context.Context) (*market.Result, *common.Address, error) {
		res, err := s.intents.AddFunding(ctx, market.AddFundingParams{
			Market: ref, Amount: amount, CollateralIsNative: req.CollateralIsNative,
		})
		return res, nil, err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": res.TxHash.Hex()})
}

type removeFundingRequest struct {
	Market       string `json:"market"`
	SharesToBurn string `json:"shares_to_burn"`
}

func (s *Server) handleRemoveFunding(w http.ResponseWriter, r *http.Request) {
	var req removeFundingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	marketAddr, ok := parseAddress(req.Market)
	if !ok {
		writeError(w, http.StatusBadRequest, "market is not a valid address")
		return
	}
	shares, ok := parseAmount(req.SharesToBurn)
	if !ok {
		writeError(w, http.StatusBadRequest, "shares_to_burn must be a base-10 integer")
		return
	}

	ref, err := s.intents.ResolveMarket(r.Context(), marketAddr)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	res, _, err := s.runIntent(r.Context(), "remove-funding", req, func(ctx context.Context) (*market.Result, *common.Address, error) {
		res, err := s.intents.RemoveFunding(ctx, market.RemoveFundingParams{Market: ref, SharesToBurn: shares})
		return res, nil, err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": res.TxHash.Hex()})
}

type redeemRequest struct {
	Collateral       string `json:"collateral"`
	ConditionID      string `json:"condition_id"`
	OutcomeSlotCount uint   `json:"outcome_slot_count"`
	QuestionID       string `json:"question_id,omitempty"`
	TemplateID       uint   `json:"template_id,omitempty"`
	RawQuestion      string `json:"raw_question,omitempty"`
	ReportedOutcome  uint   `json:"reported_outcome,omitempty"`
}

func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	var req redeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	collateral, ok := parseAddress(req.Collateral)
	if !ok {
		writeError(w, http.StatusBadRequest, "collateral is not a valid address")
		return
	}
	if req.ConditionID == "" {
		writeError(w, http.StatusBadRequest, "condition_id is required")
		return
	}

	res, _, err := s.runIntent(r.Context(), "redeem", req, func(ctx context.Context) (*market.Result, *common.Address, error) {
		res, err := s.intents.Redeem(ctx, market.RedeemParams{
			Collateral:       collateral,
			ConditionID:      common.HexToHash(req.ConditionID),
			OutcomeSlotCount: req.OutcomeSlotCount,
			Resolution: market.ResolutionPayload{
				QuestionID:      common.HexToHash(req.QuestionID),
				TemplateID:      req.TemplateID,
				RawQuestion:     req.RawQuestion,
				ReportedOutcome: req.ReportedOutcome,
			},
		})
		return res, nil, err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": res.TxHash.Hex()})
}

func (s *Server) handleProxyStatus(w http.ResponseWriter, r *http.Request) {
	upToDate, err := s.intents.IsProxyUpToDate(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"up_to_date": upToDate})
}

func (s *Server) handleProxyUpgrade(w http.ResponseWriter, r *http.Request) {
	res, _, err := s.runIntent(r.Context(), "upgrade-proxy", nil, func(ctx context.Context) (*market.Result, *common.Address, error) {
		res, err := s.intents.UpgradeProxy(ctx)
		return res, nil, err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tx_hash": res.TxHash.Hex()})
}

func (s *Server) handleSubmissionsList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	subs, err := s.listSubmissions(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if subs == nil {
		subs = []Submission{}
	}
	writeJSON(w, http.StatusOK, subs)
}
