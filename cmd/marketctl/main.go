package main

import (
	"context"
	"flag"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"github.com/predictfi/gomarket/internal/bootstrap"
	"github.com/predictfi/gomarket/internal/contracts"
	"github.com/predictfi/gomarket/internal/market"
	"github.com/predictfi/gomarket/pkg/config"
	"github.com/predictfi/gomarket/pkg/logger"
	"github.com/predictfi/gomarket/pkg/secretstore"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: marketctl <command> [flags]

commands:
  buy             buy outcome shares
  sell            sell outcome shares
  create-market   deploy and fund a new market
  add-funding     add liquidity to a market
  remove-funding  remove liquidity from a market
  redeem          redeem winnings for a condition
  proxy-status    report whether the proxy runs the target implementation
  upgrade-proxy   point the proxy at the target implementation
  store-key       save a private key into the encrypted secret store
`)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	cmd, args := os.Args[1], os.Args[2:]

	switch cmd {
	case "buy":
		cmdBuy(args)
	case "sell":
		cmdSell(args)
	case "create-market":
		cmdCreateMarket(args)
	case "add-funding":
		cmdAddFunding(args)
	case "remove-funding":
		cmdRemoveFunding(args)
	case "redeem":
		cmdRedeem(args)
	case "proxy-status":
		cmdProxyStatus(args)
	case "upgrade-proxy":
		cmdUpgradeProxy(args)
	case "store-key":
		cmdStoreKey(args)
	default:
		usage()
		os.Exit(2)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}

func setup(cfgPath string) (*config.Config, *bootstrap.Runtime) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fatal(err)
	}
	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.OutputFile,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rt, err := bootstrap.Build(ctx, cfg)
	if err != nil {
		fatal(err)
	}
	return cfg, rt
}

func intentCtx(cfg *config.Config) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(cfg.Orchestrator.ConfirmTimeoutSec)*time.Second)
}

func mustAmount(raw, name string) *big.Int {
	v, ok := new(big.Int).SetString(strings.TrimSpace(raw), 10)
	if !ok {
		fatal(fmt.Errorf("%s must be a base-10 integer, got %q", name, raw))
	}
	return v
}

func mustAddress(raw, name string) common.Address {
	if !common.IsHexAddress(raw) {
		fatal(fmt.Errorf("%s is not a valid address: %q", name, raw))
	}
	return common.HexToAddress(raw)
}

func cmdBuy(args []string) {
	fs := flag.NewFlagSet("buy", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	marketAddr := fs.String("market", "", "market maker address (0x...)")
	amount := fs.String("amount", "", "collateral amount in base units")
	outcome := fs.Uint("outcome", 0, "outcome index to buy")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	ref, err := rt.Orchestrator.ResolveMarket(ctx, mustAddress(*marketAddr, "-market"))
	if err != nil {
		fatal(err)
	}
	res, err := rt.Orchestrator.Buy(ctx, market.BuyParams{
		Market:       ref,
		Amount:       mustAmount(*amount, "-amount"),
		OutcomeIndex: *outcome,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Println("tx:", res.TxHash.Hex())
}

func cmdSell(args []string) {
	fs := flag.NewFlagSet("sell", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	marketAddr := fs.String("market", "", "market maker address (0x...)")
	returnAmt := fs.String("return", "", "collateral amount to receive, in base units")
	outcome := fs.Uint("outcome", 0, "outcome index to sell")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	ref, err := rt.Orchestrator.ResolveMarket(ctx, mustAddress(*marketAddr, "-market"))
	if err != nil {
		fatal(err)
	}
	res, err := rt.Orchestrator.Sell(ctx, market.SellParams{
		Market:       ref,
		ReturnAmount: mustAmount(*returnAmt, "-return"),
		OutcomeIndex: *outcome,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Println("tx:", res.TxHash.Hex())
}

func cmdCreateMarket(args []string) {
	fs := flag.NewFlagSet("create-market", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	collateral := fs.String("collateral", "", "collateral token address; empty with -native funds in native currency")
	native := fs.Bool("native", false, "fund with the chain's native asset (wrapped inside the batch)")
	funding := fs.String("funding", "", "initial funding in base units")
	fee := fs.String("fee", "200", "market fee in basis points")
	questionID := fs.String("question-id", "", "pre-existing oracle question id (skips ask-question)")
	question := fs.String("question", "", "templated question text (when no -question-id)")
	category := fs.String("category", "", "question category")
	openingTS := fs.Uint64("opening-ts", 0, "question opening timestamp (unix)")
	timeout := fs.Uint64("timeout", 86400, "oracle answer timeout in seconds")
	probs := fs.String("probabilities", "0.5,0.5", "comma-separated outcome probabilities, must sum to 1")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	var probabilities []decimal.Decimal
	for _, raw := range strings.Split(*probs, ",") {
		p, err := decimal.NewFromString(strings.TrimSpace(raw))
		if err != nil {
			fatal(fmt.Errorf("bad probability %q: %w", raw, err))
		}
		probabilities = append(probabilities, p)
	}

	params := market.CreateMarketParams{
		CollateralIsNative: *native,
		Funding:            mustAmount(*funding, "-funding"),
		Fee:                mustAmount(*fee, "-fee"),
		Oracle:             common.HexToAddress(cfg.Contracts.Oracle),
		QuestionID:         common.HexToHash(*questionID),
		Question: contracts.QuestionParams{
			Question:   *question,
			Category:   *category,
			Arbitrator: common.HexToAddress(cfg.Contracts.Arbitrator),
			Timeout:    uint32(*timeout),
			OpeningTS:  uint32(*openingTS),
			Nonce:      big.NewInt(0),
		},
		OutcomeProbabilities: probabilities,
	}
	if !*native {
		params.Collateral = mustAddress(*collateral, "-collateral")
	}

	res, err := rt.Orchestrator.CreateMarket(ctx, params)
	if err != nil {
		fatal(err)
	}
	fmt.Println("tx:", res.TxHash.Hex())
	fmt.Println("market:", res.MarketAddress.Hex())
}

func cmdAddFunding(args []string) {
	fs := flag.NewFlagSet("add-funding", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	marketAddr := fs.String("market", "", "market maker address (0x...)")
	amount := fs.String("amount", "", "funding amount in base units")
	native := fs.Bool("native", false, "fund with the chain's native asset")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	ref, err := rt.Orchestrator.ResolveMarket(ctx, mustAddress(*marketAddr, "-market"))
	if err != nil {
		fatal(err)
	}
	res, err := rt.Orchestrator.AddFunding(ctx, market.AddFundingParams{
		Market:             ref,
		Amount:             mustAmount(*amount, "-amount"),
		CollateralIsNative: *native,
	})
	if err != nil {
		fatal(err)
	}
	fmt.Println("tx:", res.TxHash.Hex())
}

func cmdRemoveFunding(args []string) {
	fs := flag.NewFlagSet("remove-funding", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	marketAddr := fs.String("market", "", "market maker address (0x...)")
	shares := fs.String("shares", "", "pool shares to burn, in base units")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	ref, err := rt.Orchestrator.ResolveMarket(ctx, mustAddress(*marketAddr, "-market"))
	if err != nil {
		fatal(err)
	}
	res, err := rt.Orchestrator.RemoveFunding(ctx, market.RemoveFundingParams{
		Market:       ref,
		SharesToBurn: mustAmount(*shares, "-shares"),
	})
	if err != nil {
		fatal(err)
	}
	fmt.Println("tx:", res.TxHash.Hex())
}

func cmdRedeem(args []string) {
	fs := flag.NewFlagSet("redeem", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	collateral := fs.String("collateral", "", "collateral token address (0x...)")
	conditionID := fs.String("condition", "", "condition id (0x...)")
	slots := fs.Uint("outcomes", 2, "outcome slot count")
	questionID := fs.String("question-id", "", "oracle question id (needed when unresolved)")
	rawQuestion := fs.String("question", "", "raw templated question text (needed when unresolved)")
	templateID := fs.Uint("template", 0, "oracle template id")
	reported := fs.Uint("reported-outcome", 0, "oracle's finalized outcome (needed when unresolved)")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	res, err := rt.Orchestrator.Redeem(ctx, market.RedeemParams{
		Collateral:       mustAddress(*collateral, "-collateral"),
		ConditionID:      common.HexToHash(*conditionID),
		OutcomeSlotCount: *slots,
		Resolution: market.ResolutionPayload{
			QuestionID:      common.HexToHash(*questionID),
			TemplateID:      *templateID,
			RawQuestion:     *rawQuestion,
			ReportedOutcome: *reported,
		},
	})
	if err != nil {
		fatal(err)
	}
	fmt.Println("tx:", res.TxHash.Hex())
}

func cmdProxyStatus(args []string) {
	fs := flag.NewFlagSet("proxy-status", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	deployed, err := rt.Account.IsDeployed(ctx)
	if err != nil {
		fatal(err)
	}
	upToDate, err := rt.Orchestrator.IsProxyUpToDate(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Println("proxy:", rt.Account.Address.Hex())
	fmt.Println("deployed:", deployed)
	fmt.Println("up-to-date:", upToDate)
}

func cmdUpgradeProxy(args []string) {
	fs := flag.NewFlagSet("upgrade-proxy", flag.ExitOnError)
	cfgPath := fs.String("config", os.Getenv("GOMARKET_CONFIG"), "config yaml path")
	_ = fs.Parse(args)

	cfg, rt := setup(*cfgPath)
	defer rt.Close()
	ctx, cancel := intentCtx(cfg)
	defer cancel()

	res, err := rt.Orchestrator.UpgradeProxy(ctx)
	if err != nil {
		fatal(err)
	}
	fmt.Println("tx:", res.TxHash.Hex())
}

func cmdStoreKey(args []string) {
	fs := flag.NewFlagSet("store-key", flag.ExitOnError)
	storePath := fs.String("store", "data/secrets.badger", "badger secret store path")
	keyHex := fs.String("key", "", "private key hex (falls back to GOMARKET_PRIVATE_KEY)")
	_ = fs.Parse(args)

	hex := strings.TrimSpace(*keyHex)
	if hex == "" {
		hex = strings.TrimSpace(os.Getenv("GOMARKET_PRIVATE_KEY"))
	}
	if hex == "" {
		fatal(fmt.Errorf("-key or GOMARKET_PRIVATE_KEY is required"))
	}
	if err := secretstore.StoreKey(*storePath, hex); err != nil {
		fatal(err)
	}
	fmt.Println("key stored in", *storePath)
}
