package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TypesTestSuite struct {
	suite.Suite
}

func TestTypesSuite(t *testing.T) {
	suite.Run(t, new(TypesTestSuite))
}

func (suite *TypesTestSuite) TestSideOpposite() {
	suite.Equal(SideSell, SideBuy.Opposite())
	suite.Equal(SideBuy, SideSell.Opposite())
}

func (suite *TypesTestSuite) TestSideDirection() {
	suite.Equal(1.0, SideBuy.Direction())
	suite.Equal(-1.0, SideSell.Direction())
}

func (suite *TypesTestSuite) TestPipSizeFiveDigit() {
	info := SymbolInfo{Point: 0.00001}
	suite.InDelta(0.0001, info.PipSize(), 1e-12)
}

func (suite *TypesTestSuite) TestPipSizeCoarsePoint() {
	// JPY-style quoting uses the point itself as the pip.
	info := SymbolInfo{Point: 0.01}
	suite.InDelta(0.01, info.PipSize(), 1e-12)
}

func (suite *TypesTestSuite) TestTickMid() {
	tick := Tick{Bid: 1.10000, Ask: 1.10010}
	suite.InDelta(1.10005, tick.Mid(), 1e-9)
}

func (suite *TypesTestSuite) TestHistoryDealIsLoss() {
	suite.True(HistoryDeal{Profit: -2.5}.IsLoss())
	suite.False(HistoryDeal{Profit: 0}.IsLoss())
	suite.False(HistoryDeal{Profit: 1.2}.IsLoss())
}

func (suite *TypesTestSuite) TestRiskTierAccepts() {
	tier := RiskTier{Name: "t2", Ceiling: 2.0, BalanceMin: 100, BalanceMax: 200}

	suite.True(tier.Accepts(100))
	suite.True(tier.Accepts(199.99))
	suite.False(tier.Accepts(99.99))
	// Upper bound is exclusive.
	suite.False(tier.Accepts(200))
}

func (suite *TypesTestSuite) TestRiskTierValidate() {
	tier := RiskTier{Name: "t1", Ceiling: 1.0, BalanceMin: 0, BalanceMax: 100}
	suite.NoError(tier.Validate())

	bad := RiskTier{Name: "t1", Ceiling: 1.0, BalanceMin: 100, BalanceMax: 50}
	suite.Error(bad.Validate())
}

func (suite *TypesTestSuite) TestPlanEntryValidate() {
	entry := PlanEntry{
		Symbol:       "EURUSD",
		Side:         SideBuy,
		Entry:        1.10000,
		Stop:         1.09980,
		Target:       1.10040,
		Volume:       0.10,
		PipSize:      0.0001,
		PipValue:     1.0,
		RiskAmount:   2.0,
		RewardAmount: 4.0,
		Timeframe:    "H4",
	}
	suite.NoError(entry.Validate())

	entry.Side = "HOLD"
	suite.Error(entry.Validate())
}

func (suite *TypesTestSuite) TestPlanDocumentSummarize() {
	doc := PlanDocument{
		SchemaVersion: "1.0.0",
		Broker:        "alpha",
		Tier:          "t1",
		UpdatedAt:     time.Now(),
		Entries: []PlanEntry{
			{Symbol: "EURUSD", Side: SideBuy},
			{Symbol: "GBPUSD", Side: SideSell},
			{Symbol: "USDJPY", Side: SideBuy},
		},
		Summary: PlanSummary{Rejected: 2},
	}

	doc.Summarize()

	suite.Equal(3, doc.Summary.Total)
	suite.Equal(2, doc.Summary.Buys)
	suite.Equal(1, doc.Summary.Sells)
	// Rejection count survives resummarization.
	suite.Equal(2, doc.Summary.Rejected)
}

func (suite *TypesTestSuite) TestOrderSpecValidate() {
	spec := OrderSpec{
		Symbol:     "EURUSD",
		Side:       SideSell,
		Price:      1.20000,
		StopLoss:   1.20200,
		TakeProfit: 1.19600,
		Volume:     0.02,
	}
	suite.NoError(spec.Validate())

	spec.Volume = 0
	suite.Error(spec.Validate())
}
