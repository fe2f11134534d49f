package native

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/i2y/mcphub/internal/adapter/outbound/httpinvoker"
	"github.com/i2y/mcphub/internal/domain"
	"github.com/i2y/mcphub/internal/usecase"
)

// StockConfig holds the Alpha Vantage credentials.
type StockConfig struct {
	APIKey  string
	BaseURL string // defaults to https://www.alphavantage.co
}

type stockArgs struct {
	Ticker string `json:"ticker"`
}

// StockTools returns get_stock_price.
func StockTools(invoker *httpinvoker.Invoker, cfg StockConfig) []Tool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.alphavantage.co"
	}
	return []Tool{
		{
			Name:        "get_stock_price",
			Description: "Fetches the current stock price for a given ticker symbol using Alpha Vantage.",
			Group:       usecase.NativeGroupUtility,
			Signature: &domain.Signature{Model: &domain.JSONSchemaProps{
				Type:  "object",
				Title: "GetStockPriceArgs",
				Properties: map[string]domain.JSONSchemaProps{
					"ticker": {Type: "string", Title: "Ticker", Description: "The stock ticker symbol, e.g., 'AAPL' for Apple."},
				},
				Required: []string{"ticker"},
			}},
			Func: func(ctx context.Context, in Input) (interface{}, error) {
				args, err := Decode[stockArgs](in.Args)
				if err != nil {
					return nil, err
				}
				return stockPrice(ctx, invoker, cfg, args.Ticker)
			},
		},
	}
}

func stockPrice(ctx context.Context, invoker *httpinvoker.Invoker, cfg StockConfig, ticker string) (string, error) {
	if cfg.APIKey == "" {
		return "", fmt.Errorf("Alpha Vantage API key is not configured: %w", usecase.ErrMissingCredentials)
	}

	var body json.RawMessage
	err := invoker.DoInto(ctx, httpinvoker.Request{
		Method:  http.MethodGet,
		BaseURL: cfg.BaseURL,
		Path:    "/query",
		Args:    map[string]interface{}{"function": "GLOBAL_QUOTE", "symbol": ticker, "apikey": cfg.APIKey},
		ArgsIn:  httpinvoker.ArgsInQuery,
	}, &body)
	if err != nil {
		return "", fmt.Errorf("Alpha Vantage request failed: %w", err)
	}

	var data struct {
		GlobalQuote map[string]string `json:"Global Quote"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return "", fmt.Errorf("decoding Alpha Vantage response: %w", err)
	}
	if price, ok := data.GlobalQuote["05. price"]; ok && price != "" {
		return fmt.Sprintf("The current stock price of %s is %s", ticker, price), nil
	}
	return fmt.Sprintf("Could not find stock price for %s. Response: %s", ticker, strings.TrimSpace(string(body))), nil
}
