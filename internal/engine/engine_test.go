package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stratumlab/tiersweep/internal/audit"
	"github.com/stratumlab/tiersweep/internal/config"
	"github.com/stratumlab/tiersweep/internal/logger"
	"github.com/stratumlab/tiersweep/internal/plan"
	"github.com/stratumlab/tiersweep/internal/types"
	"github.com/stratumlab/tiersweep/internal/venue/venuetest"
	"github.com/stretchr/testify/suite"
)

type EngineTestSuite struct {
	suite.Suite

	session *venuetest.FakeSession
	gateway *venuetest.FakeGateway
	plans   *plan.Store
	audits  *audit.Store
	log     *logger.Logger
	cfg     *config.Config
	account config.AccountConfig
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineTestSuite))
}

func (suite *EngineTestSuite) SetupTest() {
	suite.session = venuetest.NewFakeSession()
	suite.session.Account = types.AccountInfo{Balance: 500, Equity: 500, Currency: "USD"}
	suite.session.Symbols["EURUSD"] = types.SymbolInfo{
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
	suite.session.Ticks["EURUSD"] = types.Tick{Bid: 1.10480, Ask: 1.10482, Time: time.Now()}

	suite.gateway = &venuetest.FakeGateway{Session: suite.session, FailConnect: false}
	suite.plans = plan.NewStore(suite.T().TempDir())

	var err error
	suite.audits, err = audit.NewStore(":memory:")
	suite.Require().NoError(err)

	suite.log, err = logger.NewLogger()
	suite.Require().NoError(err)

	suite.cfg = &config.Config{
		PlanRoot:  "",
		AuditPath: "",
		LogFile:   "",
		MinDistancePips: map[types.InstrumentClass]float64{
			types.InstrumentClassStandard:  1,
			types.InstrumentClassSynthetic: 15,
		},
		Tolerances: config.Tolerances{
			CeilingEpsilon:       0.10,
			PriceTolerancePoints: 1,
			BreakevenCheckpoints: []float64{0.25, 0.50},
			HistoryLookback:      5 * 24 * time.Hour,
			MartingaleLookback:   24 * time.Hour,
		},
		Tiers: []types.RiskTier{
			{Name: "tier-2", Ceiling: 2.6, BalanceMin: 100, BalanceMax: 1000},
		},
		Accounts: nil,
	}

	suite.account = config.AccountConfig{
		Name:              "alpha",
		Broker:            "brokerx",
		Gateway:           "bridge",
		GatewayConfig:     "{}",
		ScalingMode:       types.ScalingModeConsistency,
		RewardMultiple:    2,
		MartingaleSymbols: nil,
		PricePreference:   types.PricePreferenceAscending,
	}
}

func (suite *EngineTestSuite) TearDownTest() {
	suite.NoError(suite.audits.Close())
}

func (suite *EngineTestSuite) runSweep() Summary {
	sweeper := NewSweeper(suite.cfg, suite.account, suite.gateway, suite.plans, suite.audits, suite.log)

	summary, err := sweeper.Run(context.Background())
	suite.Require().NoError(err)

	return summary
}

func (suite *EngineTestSuite) seedPlan(entries ...types.PlanEntry) {
	doc := &types.PlanDocument{Broker: "brokerx", Tier: "tier-2", Entries: entries}
	suite.Require().NoError(suite.plans.Save(doc))
}

// eurusdEntry is a 2-pip buy setup risking $2.00 at 0.10 lots.
func eurusdEntry() types.PlanEntry {
	return types.PlanEntry{
		Symbol:       "EURUSD",
		Side:         types.SideBuy,
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
}

func (suite *EngineTestSuite) TestPlacementCreatesMissingOrder() {
	suite.seedPlan(eurusdEntry())

	summary := suite.runSweep()

	suite.Equal(1, summary.Placed)
	suite.Equal(0, summary.Rejected)
	suite.Equal(1, suite.session.SubmitCount)

	orders, err := suite.session.PendingOrders(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.Equal(types.SideBuy, orders[0].Side)
	suite.InDelta(1.10000, orders[0].Price, 1e-9)
	suite.InDelta(1.09980, orders[0].StopLoss, 1e-9)
	suite.InDelta(1.10040, orders[0].TakeProfit, 1e-9)
	suite.InDelta(0.10, orders[0].Volume, 1e-9)
}

func (suite *EngineTestSuite) TestSecondSweepIsNoOp() {
	suite.seedPlan(eurusdEntry())

	first := suite.runSweep()
	suite.Equal(1, first.Placed)

	submits := suite.session.SubmitCount
	modifies := suite.session.ModifyCount
	cancels := suite.session.CancelCount
	stopModifies := suite.session.StopModifyCount

	second := suite.runSweep()
	suite.Equal(0, second.Placed)
	suite.Equal(0, second.Cancelled)
	suite.Equal(0, second.TargetsResynced)
	suite.Equal(0, second.StopsAdvanced)

	suite.Equal(submits, suite.session.SubmitCount)
	suite.Equal(modifies, suite.session.ModifyCount)
	suite.Equal(cancels, suite.session.CancelCount)
	suite.Equal(stopModifies, suite.session.StopModifyCount)
}

func (suite *EngineTestSuite) TestValidatorPrunesOverCeilingEntry() {
	oversized := eurusdEntry()
	oversized.Volume = 10 // 2 pips at 10 lots is $2000 of risk
	suite.seedPlan(oversized)

	summary := suite.runSweep()

	suite.Equal(1, summary.Rejected)
	suite.Equal(0, summary.Placed)
	suite.Equal(0, suite.session.SubmitCount)

	doc, err := suite.plans.Load("brokerx", "tier-2")
	suite.Require().NoError(err)
	suite.Empty(doc.Entries)
	suite.Equal(1, doc.Summary.Rejected)
}

func (suite *EngineTestSuite) TestEntryTooCloseToMarketIsRejected() {
	tight := eurusdEntry()
	tight.Entry = 1.10480 // ask is 1.10482
	tight.Stop = 1.10460
	tight.Target = 1.10520
	suite.seedPlan(tight)

	summary := suite.runSweep()

	suite.Equal(1, summary.Rejected)
	suite.Equal(0, suite.session.SubmitCount)

	doc, err := suite.plans.Load("brokerx", "tier-2")
	suite.Require().NoError(err)
	suite.Empty(doc.Entries)
}

func (suite *EngineTestSuite) TestPendingDuplicateKeepsPreferredSurvivor() {
	keep := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.09900, StopLoss: 1.09880, TakeProfit: 1.09940, Volume: 0.10,
	})
	drop := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10040, Volume: 0.10,
	})

	summary := suite.runSweep()

	suite.Equal(1, summary.Cancelled)
	suite.Equal(1, summary.CancelsByReason[types.CancelReasonPendingDuplicate])

	_, kept := suite.session.Order(keep)
	suite.True(kept, "ascending preference keeps the lower entry price")

	_, dropped := suite.session.Order(drop)
	suite.False(dropped)
}

func (suite *EngineTestSuite) TestDescendingPreferenceKeepsHigherPrice() {
	suite.account.PricePreference = types.PricePreferenceDescending

	drop := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.09900, StopLoss: 1.09880, TakeProfit: 1.09940, Volume: 0.10,
	})
	keep := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10040, Volume: 0.10,
	})

	summary := suite.runSweep()

	suite.Equal(1, summary.CancelsByReason[types.CancelReasonPendingDuplicate])

	_, kept := suite.session.Order(keep)
	suite.True(kept)

	_, dropped := suite.session.Order(drop)
	suite.False(dropped)
}

func (suite *EngineTestSuite) TestPositionDuplicateCancelsPendingOnly() {
	suite.session.Symbols["GBPUSD"] = types.SymbolInfo{
		Symbol:        "GBPUSD",
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
	suite.session.Ticks["GBPUSD"] = types.Tick{Bid: 1.24900, Ask: 1.24902, Time: time.Now()}

	pending := suite.session.AddOrder(types.PendingOrder{
		Symbol: "GBPUSD", Side: types.SideSell,
		Price: 1.25000, StopLoss: 1.25020, TakeProfit: 1.24960, Volume: 0.10,
	})
	position := suite.session.AddPosition(types.Position{
		Symbol: "GBPUSD", Side: types.SideSell,
		OpenPrice: 1.24800, StopLoss: 1.24820, TakeProfit: 1.24760, Volume: 0.10,
	})

	summary := suite.runSweep()

	suite.Equal(1, summary.CancelsByReason[types.CancelReasonPositionDuplicate])

	_, stillPending := suite.session.Order(pending)
	suite.False(stillPending)

	live, ok := suite.session.Position(position)
	suite.Require().True(ok, "the open position is untouched")
	suite.InDelta(1.24820, live.StopLoss, 1e-9)
	suite.InDelta(1.24760, live.TakeProfit, 1e-9)
}

func (suite *EngineTestSuite) TestHistoryDuplicateCancelled() {
	ticket := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10040, Volume: 0.10,
	})
	suite.session.AddDeal(types.HistoryDeal{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, Volume: 0.10,
		Profit: 4.0, ClosedAt: time.Now().Add(-2 * time.Hour),
	})

	summary := suite.runSweep()

	suite.Equal(1, summary.CancelsByReason[types.CancelReasonHistoryDuplicate])

	_, ok := suite.session.Order(ticket)
	suite.False(ok)
}

func (suite *EngineTestSuite) TestRiskRuleOutranksDuplicateRules() {
	// Both orders breach the ceiling and also duplicate each other; the
	// higher-priority risk rule must claim both cancels.
	suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10040, Volume: 10,
	})
	suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.09900, StopLoss: 1.09880, TakeProfit: 1.09940, Volume: 10,
	})

	summary := suite.runSweep()

	suite.Equal(2, summary.CancelsByReason[types.CancelReasonRisk])
	suite.Equal(0, summary.CancelsByReason[types.CancelReasonPendingDuplicate])
}

func (suite *EngineTestSuite) TestTargetResyncOnPendingOrder() {
	ticket := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10020, Volume: 0.10,
	})

	summary := suite.runSweep()

	suite.Equal(1, summary.TargetsResynced)

	order, ok := suite.session.Order(ticket)
	suite.Require().True(ok)
	suite.InDelta(1.10040, order.TakeProfit, 1e-9, "target moves to 2R")
	suite.InDelta(1.09980, order.StopLoss, 1e-9)
	suite.InDelta(0.10, order.Volume, 1e-9)
}

func (suite *EngineTestSuite) TestBreakevenAdvancesToHighestStageReached() {
	suite.session.Ticks["EURUSD"] = types.Tick{Bid: 1.10025, Ask: 1.10027, Time: time.Now()}

	ticket := suite.session.AddPosition(types.Position{
		Symbol: "EURUSD", Side: types.SideBuy,
		OpenPrice: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10040, Volume: 0.10,
	})

	first := suite.runSweep()
	suite.Equal(1, first.StopsAdvanced)

	live, ok := suite.session.Position(ticket)
	suite.Require().True(ok)
	suite.InDelta(1.10010, live.StopLoss, 1e-9, "stop jumps straight to the 0.50R stage")
	suite.InDelta(1.10040, live.TakeProfit, 1e-9)

	// Same market on the next sweep: the stop must not move again.
	second := suite.runSweep()
	suite.Equal(0, second.StopsAdvanced)

	live, ok = suite.session.Position(ticket)
	suite.Require().True(ok)
	suite.InDelta(1.10010, live.StopLoss, 1e-9)
}

func (suite *EngineTestSuite) TestBreakevenFirstStageOnly() {
	suite.session.Ticks["EURUSD"] = types.Tick{Bid: 1.10007, Ask: 1.10009, Time: time.Now()}

	ticket := suite.session.AddPosition(types.Position{
		Symbol: "EURUSD", Side: types.SideBuy,
		OpenPrice: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10040, Volume: 0.10,
	})

	summary := suite.runSweep()
	suite.Equal(1, summary.StopsAdvanced)

	live, ok := suite.session.Position(ticket)
	suite.Require().True(ok)
	suite.InDelta(1.10005, live.StopLoss, 1e-9, "only the 0.25R stage is reached")
}

func (suite *EngineTestSuite) TestBreakevenNeverLoosens() {
	suite.session.Ticks["EURUSD"] = types.Tick{Bid: 1.10007, Ask: 1.10009, Time: time.Now()}

	// Stop already tighter than the 0.25R stage.
	ticket := suite.session.AddPosition(types.Position{
		Symbol: "EURUSD", Side: types.SideBuy,
		OpenPrice: 1.10000, StopLoss: 1.10006, TakeProfit: 1.10040, Volume: 0.10,
	})

	summary := suite.runSweep()
	suite.Equal(0, summary.StopsAdvanced)

	live, ok := suite.session.Position(ticket)
	suite.Require().True(ok)
	suite.InDelta(1.10006, live.StopLoss, 1e-9)
}

func (suite *EngineTestSuite) TestMartingaleDoublesVolumeAfterLoss() {
	suite.account.ScalingMode = types.ScalingModeMartingale
	suite.account.RewardMultiple = 0
	suite.account.MartingaleSymbols = []string{"EURUSD"}

	old := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10020, Volume: 0.02,
	})
	suite.session.AddDeal(types.HistoryDeal{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.09500, StopLoss: 1.09480, Volume: 0.02,
		Profit: -2.0, ClosedAt: time.Now().Add(-2 * time.Hour),
	})

	summary := suite.runSweep()

	suite.Equal(1, summary.VolumeEscalations)
	suite.Equal(1, summary.CancelsByReason[types.CancelReasonMartingale])

	_, ok := suite.session.Order(old)
	suite.False(ok)

	orders, err := suite.session.PendingOrders(context.Background())
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.InDelta(0.04, orders[0].Volume, 1e-9)
	suite.InDelta(1.10000, orders[0].Price, 1e-9)
	suite.InDelta(1.09980, orders[0].StopLoss, 1e-9)
	suite.InDelta(1.10020, orders[0].TakeProfit, 1e-9)
}

func (suite *EngineTestSuite) TestMartingaleIgnoresNonAllowListedSymbol() {
	suite.account.ScalingMode = types.ScalingModeMartingale
	suite.account.RewardMultiple = 0
	suite.account.MartingaleSymbols = []string{"GBPUSD"}

	ticket := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10020, Volume: 0.02,
	})
	suite.session.AddDeal(types.HistoryDeal{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.09500, StopLoss: 1.09480, Volume: 0.02,
		Profit: -2.0, ClosedAt: time.Now().Add(-2 * time.Hour),
	})

	summary := suite.runSweep()

	suite.Equal(0, summary.VolumeEscalations)

	order, ok := suite.session.Order(ticket)
	suite.Require().True(ok)
	suite.InDelta(0.02, order.Volume, 1e-9)
}

func (suite *EngineTestSuite) TestVanishedTicketCountsAsCancelled() {
	suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10000, StopLoss: 1.09980, TakeProfit: 1.10040, Volume: 0.10,
	})
	drop := suite.session.AddOrder(types.PendingOrder{
		Symbol: "EURUSD", Side: types.SideBuy,
		Price: 1.10100, StopLoss: 1.10080, TakeProfit: 1.10140, Volume: 0.10,
	})

	// The duplicate at the worse price vanishes between snapshot and cancel.
	suite.session.GoneTickets[drop] = true

	summary := suite.runSweep()
	suite.Equal(1, summary.CancelsByReason[types.CancelReasonPendingDuplicate])
}

func (suite *EngineTestSuite) TestConnectFailureAbortsAccountSweep() {
	suite.gateway.FailConnect = true
	sweeper := NewSweeper(suite.cfg, suite.account, suite.gateway, suite.plans, suite.audits, suite.log)

	summary, err := sweeper.Run(context.Background())
	suite.Error(err)
	suite.Equal(0, summary.Placed)
	suite.Equal(0, summary.Cancelled)
}

func (suite *EngineTestSuite) TestDryRunIssuesNoVenueMutations() {
	suite.seedPlan(eurusdEntry())
	suite.session.AddOrder(types.PendingOrder{
		Symbol: "GBPJPY", Side: types.SideSell,
		Price: 190.000, StopLoss: 190.020, TakeProfit: 189.960, Volume: 0.10,
	})
	suite.session.AddOrder(types.PendingOrder{
		Symbol: "GBPJPY", Side: types.SideSell,
		Price: 190.100, StopLoss: 190.120, TakeProfit: 190.060, Volume: 0.10,
	})

	sweeper := NewSweeper(suite.cfg, suite.account, suite.gateway, suite.plans, suite.audits, suite.log)
	sweeper.DryRun = true

	summary, err := sweeper.Run(context.Background())
	suite.Require().NoError(err)

	suite.Equal(1, summary.Placed)
	suite.Equal(1, summary.CancelsByReason[types.CancelReasonPendingDuplicate])

	suite.Equal(0, suite.session.SubmitCount)
	suite.Equal(0, suite.session.CancelCount)
	suite.Equal(0, suite.session.ModifyCount)
	suite.Equal(0, suite.session.StopModifyCount)
}
