package risk

import (
	"context"
	"math"

	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/pkg/errors"
)

// TickQuoter is the slice of a venue session needed for live pricing.
type TickQuoter interface {
	Tick(ctx context.Context, symbol string) (types.Tick, error)
}

// CrossRate returns how many quote-currency units one account-currency unit
// buys, via the live <accountCCY><quoteCCY> cross or its inverse. Parity is
// never assumed: a missing cross is an error, not 1.0.
func CrossRate(ctx context.Context, quoter TickQuoter, accountCCY, quoteCCY string) (float64, error) {
	if accountCCY == "" || quoteCCY == "" || accountCCY == quoteCCY {
		return 1, nil
	}

	if tick, err := quoter.Tick(ctx, accountCCY+quoteCCY); err == nil && tick.Mid() > 0 {
		return tick.Mid(), nil
	}

	if tick, err := quoter.Tick(ctx, quoteCCY+accountCCY); err == nil && tick.Mid() > 0 {
		return 1 / tick.Mid(), nil
	}

	return 0, errors.Newf(errors.ErrCodeCrossRateUnavailable, "no live cross for %s/%s", accountCCY, quoteCCY)
}

// LiveRisk recomputes the monetary risk of an (entry, stop, volume) triple
// from live contract metadata, converted into the account currency.
func LiveRisk(ctx context.Context, quoter TickQuoter, info types.SymbolInfo, accountCCY string, entry, stop, volume float64) (float64, error) {
	perPip, err := PipValue(info, volume)
	if err != nil {
		return 0, err
	}

	riskQuote := math.Abs(entry-stop) / info.PipSize() * perPip

	rate, err := CrossRate(ctx, quoter, accountCCY, info.QuoteCurrency)
	if err != nil {
		return 0, err
	}

	return riskQuote / rate, nil
}
