package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

// OracleBalance is the external wallet oracle's view of one asset's on-chain
// balance for an address.
type OracleBalance struct {
	Asset   string          `json:"asset"`
	Balance decimal.Decimal `json:"balance"`
}

// GasEstimate is the external oracle's quote for a withdrawal's gas cost.
type GasEstimate struct {
	Asset      string          `json:"asset"`
	GasLimit   uint64          `json:"gas_limit"`
	GasPriceAt decimal.Decimal `json:"gas_price_gwei"`
}

// Oracle is the opaque external wallet collaborator: it owns on-chain RPC
// access, signing, and gas estimation. This core never signs or broadcasts
// transactions itself; it only asks the oracle for balances and estimates.
type Oracle interface {
	SyncBalance(ctx context.Context, address, asset string) (OracleBalance, error)
	EstimateGas(ctx context.Context, address, asset string, amount decimal.Decimal) (GasEstimate, error)
}

// RestyOracle is an HTTP-backed Oracle implementation.
// It wraps a resty HTTP client with a base URL, a timeout, and up to 3
// retries (500ms to 5s apart) on transport errors and 5xx responses.
type RestyOracle struct {
	http   *resty.Client
	logger *slog.Logger
}

// NewRestyOracle creates an HTTP client targeting an external wallet oracle.
func NewRestyOracle(baseURL string, timeout time.Duration, logger *slog.Logger) *RestyOracle {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() >= 500
		}).
		SetHeader("Content-Type", "application/json")

	return &RestyOracle{http: httpClient, logger: logger.With("component", "wallet_oracle")}
}

// SyncBalance asks the oracle for an address's current on-chain balance.
func (o *RestyOracle) SyncBalance(ctx context.Context, address, asset string) (OracleBalance, error) {
	var result OracleBalance
	resp, err := o.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"address": address, "asset": asset}).
		SetResult(&result).
		Get("/balances")
	if err != nil {
		return OracleBalance{}, fmt.Errorf("sync balance: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return OracleBalance{}, fmt.Errorf("sync balance: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// EstimateGas asks the oracle for the gas cost of a prospective withdrawal.
func (o *RestyOracle) EstimateGas(ctx context.Context, address, asset string, amount decimal.Decimal) (GasEstimate, error) {
	var result GasEstimate
	resp, err := o.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"address": address,
			"asset":   asset,
			"amount":  amount.String(),
		}).
		SetResult(&result).
		Post("/gas-estimate")
	if err != nil {
		return GasEstimate{}, fmt.Errorf("estimate gas: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return GasEstimate{}, fmt.Errorf("estimate gas: status %d: %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}
