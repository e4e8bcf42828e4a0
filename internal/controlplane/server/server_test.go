package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/predictfi/gomarket/internal/market"
)

type fakeIntents struct {
	buyErr    error
	upToDate  bool
	lastBuy   market.BuyParams
	marketRef market.MarketRef
}

func (f *fakeIntents) result() *market.Result {
	return &market.Result{
		TxHash:  common.HexToHash("0xabc"),
		Receipt: &ethtypes.Receipt{Status: ethtypes.ReceiptStatusSuccessful},
	}
}

func (f *fakeIntents) Buy(_ context.Context, p market.BuyParams) (*market.Result, error) {
	f.lastBuy = p
	if f.buyErr != nil {
		return nil, f.buyErr
	}
	return f.result(), nil
}

func (f *fakeIntents) Sell(context.Context, market.SellParams) (*market.Result, error) {
	return f.result(), nil
}

func (f *fakeIntents) CreateMarket(context.Context, market.CreateMarketParams) (*market.CreateMarketResult, error) {
	return &market.CreateMarketResult{
		Result:        *f.result(),
		MarketAddress: common.HexToAddress("0x3333333333333333333333333333333333333333"),
	}, nil
}

func (f *fakeIntents) AddFunding(context.Context, market.AddFundingParams) (*market.Result, error) {
	return f.result(), nil
}

func (f *fakeIntents) RemoveFunding(context.Context, market.RemoveFundingParams) (*market.Result, error) {
	return f.result(), nil
}

func (f *fakeIntents) Redeem(context.Context, market.RedeemParams) (*market.Result, error) {
	return f.result(), nil
}

func (f *fakeIntents) IsProxyUpToDate(context.Context) (bool, error) {
	return f.upToDate, nil
}

func (f *fakeIntents) UpgradeProxy(context.Context) (*market.Result, error) {
	return f.result(), nil
}

func (f *fakeIntents) ResolveMarket(context.Context, common.Address) (market.MarketRef, error) {
	return f.marketRef, nil
}

func newTestServer(t *testing.T, intents Intents) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	s, err := New(Config{DBPath: filepath.Join(t.TempDir(), "test.db")}, intents, logrus.NewEntry(log))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestBuyEndpointJournalsSubmission(t *testing.T) {
	intents := &fakeIntents{
		marketRef: market.MarketRef{
			Address:          common.HexToAddress("0x3333333333333333333333333333333333333333"),
			Collateral:       common.HexToAddress("0x4444444444444444444444444444444444444444"),
			OutcomeSlotCount: 2,
		},
	}
	s := newTestServer(t, intents)
	router := s.Router()

	rec := postJSON(t, router, "/api/intents/buy", map[string]any{
		"market":        "0x3333333333333333333333333333333333333333",
		"amount":        "100",
		"outcome_index": 1,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "100", intents.lastBuy.Amount.String())
	require.Equal(t, uint(1), intents.lastBuy.OutcomeIndex)

	subs, err := s.listSubmissions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "buy", subs[0].Intent)
	require.Equal(t, "confirmed", subs[0].Status)
	require.NotNil(t, subs[0].TxHash)
	require.NotNil(t, subs[0].FinishedAt)
}

func TestBuyEndpointRejectsBadInput(t *testing.T) {
	s := newTestServer(t, &fakeIntents{})
	router := s.Router()

	rec := postJSON(t, router, "/api/intents/buy", map[string]any{
		"market": "not-an-address", "amount": "100",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, router, "/api/intents/buy", map[string]any{
		"market": "0x3333333333333333333333333333333333333333", "amount": "12.5",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuyEndpointMapsErrorKinds(t *testing.T) {
	intents := &fakeIntents{buyErr: &market.PreconditionError{Op: "buy", Reason: "amount must be positive"}}
	s := newTestServer(t, intents)
	router := s.Router()

	rec := postJSON(t, router, "/api/intents/buy", map[string]any{
		"market": "0x3333333333333333333333333333333333333333", "amount": "100",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	subs, err := s.listSubmissions(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	require.Equal(t, "failed", subs[0].Status)
	require.NotNil(t, subs[0].Error)
}

func TestCreateMarketEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeIntents{})
	router := s.Router()

	rec := postJSON(t, router, "/api/intents/create-market", map[string]any{
		"collateral_is_native":  true,
		"funding":               "5000",
		"fee":                   "200",
		"question_text":         "q?",
		"question_opening_ts":   1700000000,
		"outcome_probabilities": []string{"0.5", "0.5"},
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "0x3333333333333333333333333333333333333333", body["market_address"])
}

func TestProxyStatusEndpoint(t *testing.T) {
	s := newTestServer(t, &fakeIntents{upToDate: true})
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/proxy/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]bool
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body["up_to_date"])
}

func TestSubmissionsEndpointEmptyList(t *testing.T) {
	s := newTestServer(t, &fakeIntents{})
	router := s.Router()

	req := httptest.NewRequest(http.MethodGet, "/api/submissions", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, "[]", rec.Body.String())
}
