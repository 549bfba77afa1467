package risk

import (
	"math"
	"testing"

	"github.com/moznion/go-optional"
	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// fiveDigitSymbol is a standard 5-digit quoted pair.
func fiveDigitSymbol() types.SymbolInfo {
	return types.SymbolInfo{
		Symbol:        "EURUSD",
		TickSize:      0.00001,
		TickValue:     1.0,
		VolumeStep:    0.01,
		VolumeMin:     0.01,
		VolumeMax:     100,
		Digits:        5,
		Point:         0.00001,
		QuoteCurrency: "USD",
		Class:         types.InstrumentClassStandard,
	}
}

type CalculatorTestSuite struct {
	suite.Suite
}

func TestCalculatorSuite(t *testing.T) {
	suite.Run(t, new(CalculatorTestSuite))
}

func (suite *CalculatorTestSuite) TestDirectBuySizing() {
	// risk=$2.00, tick_size=0.00001, tick_value=1.0, volume=0.10
	// -> per-pip value $1.00, stop distance 2 pips.
	result, err := Compute(Input{
		Risk:     2.00,
		Entry:    1.10000,
		Side:     types.SideBuy,
		Multiple: 2,
		Volume:   0.10,
		Symbol:   fiveDigitSymbol(),
	})
	suite.NoError(err)
	suite.InDelta(1.09980, result.Stop, 1e-9)
	suite.InDelta(1.10040, result.Target, 1e-9)
	suite.InDelta(0.10, result.Volume, 1e-9)
	suite.InDelta(2.00, result.RiskAmount, 0.01)
	suite.InDelta(4.00, result.RewardAmount, 0.01)
}

func (suite *CalculatorTestSuite) TestDirectSellSizing() {
	result, err := Compute(Input{
		Risk:     2.00,
		Entry:    1.10000,
		Side:     types.SideSell,
		Multiple: 2,
		Volume:   0.10,
		Symbol:   fiveDigitSymbol(),
	})
	suite.NoError(err)
	suite.InDelta(1.10020, result.Stop, 1e-9)
	suite.InDelta(1.09960, result.Target, 1e-9)
}

func (suite *CalculatorTestSuite) TestSizingRoundTripProperty() {
	// risk_amount == pip_value * stop_distance_in_pips within rounding.
	symbol := fiveDigitSymbol()

	for _, tc := range []struct {
		risk   float64
		volume float64
	}{
		{1.00, 0.01},
		{2.00, 0.10},
		{5.50, 0.23},
		{10.00, 1.00},
	} {
		result, err := Compute(Input{
			Risk:     tc.risk,
			Entry:    1.25000,
			Side:     types.SideBuy,
			Multiple: 1,
			Volume:   tc.volume,
			Symbol:   symbol,
		})
		suite.NoError(err)

		pips := math.Abs(1.25000-result.Stop) / symbol.PipSize()
		suite.InDelta(tc.risk, pips*result.PipValue, result.PipValue*symbol.PipSize())
	}
}

func (suite *CalculatorTestSuite) TestAnchorStopDerivesTarget() {
	result, err := Compute(Input{
		Risk:       2.00,
		Entry:      1.10000,
		Side:       types.SideBuy,
		Multiple:   3,
		Volume:     0.10,
		Symbol:     fiveDigitSymbol(),
		AnchorStop: optional.Some(1.09900),
	})
	suite.NoError(err)
	suite.InDelta(1.09900, result.Stop, 1e-9)
	// Target sits 3R above entry.
	suite.InDelta(1.10300, result.Target, 1e-9)
}

func (suite *CalculatorTestSuite) TestAnchorTargetDerivesStop() {
	result, err := Compute(Input{
		Risk:         2.00,
		Entry:        1.10000,
		Side:         types.SideSell,
		Multiple:     2,
		Volume:       0.10,
		Symbol:       fiveDigitSymbol(),
		AnchorTarget: optional.Some(1.09800),
	})
	suite.NoError(err)
	suite.InDelta(1.09800, result.Target, 1e-9)
	// Stop sits 1R above the sell entry.
	suite.InDelta(1.10100, result.Stop, 1e-9)
}

func (suite *CalculatorTestSuite) TestZeroTickValueRejected() {
	symbol := fiveDigitSymbol()
	symbol.TickValue = 0

	_, err := Compute(Input{
		Risk:     2.00,
		Entry:    1.10000,
		Side:     types.SideBuy,
		Multiple: 2,
		Volume:   0.10,
		Symbol:   symbol,
	})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeTickDataUnavailable))
}

func (suite *CalculatorTestSuite) TestVolumeFloorAndClamp() {
	symbol := fiveDigitSymbol()

	suite.InDelta(0.02, RoundVolume(0.029, symbol), 1e-9)
	suite.InDelta(0.01, RoundVolume(0.005, symbol), 1e-9)
	suite.InDelta(100.0, RoundVolume(250, symbol), 1e-9)
}

func (suite *CalculatorTestSuite) TestRoundPrice() {
	symbol := fiveDigitSymbol()
	suite.InDelta(1.10001, RoundPrice(1.100012, symbol), 1e-12)

	jpy := symbol
	jpy.Digits = 3
	suite.InDelta(154.123, RoundPrice(154.12345, jpy), 1e-12)
}

func (suite *CalculatorTestSuite) TestInvalidInputRejected() {
	_, err := Compute(Input{Risk: 0, Entry: 1, Side: types.SideBuy, Multiple: 1, Volume: 1, Symbol: fiveDigitSymbol()})
	suite.Error(err)

	_, err = Compute(Input{Risk: 1, Entry: 0, Side: types.SideBuy, Multiple: 1, Volume: 1, Symbol: fiveDigitSymbol()})
	suite.Error(err)
}

func (suite *CalculatorTestSuite) TestAnchorStopAtEntryRejected() {
	_, err := Compute(Input{
		Risk:       2.00,
		Entry:      1.10000,
		Side:       types.SideBuy,
		Multiple:   2,
		Volume:     0.10,
		Symbol:     fiveDigitSymbol(),
		AnchorStop: optional.Some(1.10000),
	})
	suite.Error(err)
	suite.True(errors.HasCode(err, errors.ErrCodeStopsTooTight))
}
