package backtest

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"market-backtest/internal/analysis"
	"market-backtest/internal/calendar"
	"market-backtest/internal/config"
	"market-backtest/internal/ledger"
	"market-backtest/internal/market"
	"market-backtest/internal/metrics"
	"market-backtest/internal/model"
	"market-backtest/internal/recorder"
	"market-backtest/internal/strategy"
)

// Costs is the account and commission setup shared by runs and sweeps.
type Costs struct {
	InitialCash    float64
	BuyCommission  float64
	SellCommission float64
}

// RunSpec describes one simulation over a fixed window.
type RunSpec struct {
	Strategy config.StrategyConfig
	Tickers  []string
	Start    time.Time
	End      time.Time
	Step     time.Duration
	Costs    Costs
	// Seed drives direction "random"; zero uses the current time.
	Seed int64
}

// SweepSpec describes a batch of randomized trials.
type SweepSpec struct {
	Strategy config.StrategyConfig
	Tickers  []string
	Trials   int
	Window   time.Duration
	Step     time.Duration
	Workers  int
	Seed     int64
	Costs    Costs
}

// Simulator wires the engine to price data, persistence and metrics.
type Simulator struct {
	Calendar   calendar.Calendar
	Loader     market.Loader
	Recorder   recorder.Recorder
	LuckyTable *strategy.LuckyTable

	log *zap.Logger
}

func NewSimulator(cal calendar.Calendar, loader market.Loader, rec recorder.Recorder, table *strategy.LuckyTable, log *zap.Logger) *Simulator {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Simulator{Calendar: cal, Loader: loader, Recorder: rec, LuckyTable: table, log: log}
}

// Run loads the tickers, runs the strategy once and records the result.
func (s *Simulator) Run(spec RunSpec) (*Result, error) {
	if len(spec.Tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers", ErrInvalidRun)
	}
	ex := market.NewExchange(s.Loader)
	for _, t := range spec.Tickers {
		err := ex.Load(t)
		metrics.IncSeriesLoad(err)
		if err != nil {
			return nil, err
		}
	}

	broker, err := ledger.NewBroker(ex, spec.Costs.BuyCommission, spec.Costs.SellCommission)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	acct := broker.NewAccount(spec.Costs.InitialCash)

	seed := spec.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	strat, err := BuildStrategy(spec.Strategy, acct, spec.Tickers, BuildDeps{
		Location:   s.Calendar.Location,
		Rand:       rand.New(rand.NewSource(seed)),
		LuckyTable: s.LuckyTable,
	})
	if err != nil {
		return nil, err
	}

	res, err := New(s.Calendar, s.log).Run(strat, spec.Start, spec.End, spec.Step)
	if err != nil {
		return res, err
	}
	res.ID = uuid.NewString()
	metrics.ObserveRun(res.Strategy, res.Fills)

	if err := s.Recorder.RecordRun(&recorder.Run{
		RunID:       res.ID,
		Strategy:    res.Strategy,
		Params:      res.Params,
		Tickers:     res.Tickers,
		Start:       res.Start,
		End:         res.End,
		Steps:       res.Steps,
		Aborted:     res.Aborted,
		InitialCash: res.InitialCash,
		FinalValue:  res.FinalValue,
		Commission:  res.CommissionPaid,
		Fills:       len(res.Fills),
	}); err != nil {
		return res, fmt.Errorf("record run: %w", err)
	}

	s.log.Info("run complete",
		zap.String("run_id", res.ID),
		zap.String("strategy", res.Strategy),
		zap.Int("steps", res.Steps),
		zap.Float64("final_value", res.FinalValue),
	)
	return res, nil
}

// TrialResult is the outcome of one sweep trial.
type TrialResult struct {
	ID         string    `json:"id"`
	Ticker     string    `json:"ticker"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	ExitTime   time.Time `json:"exit_time,omitempty"`
	Aborted    bool      `json:"aborted"`
	FinalValue float64   `json:"final_value"`
	Ratio      float64   `json:"ratio"`
	Commission float64   `json:"commission"`
	Fills      int       `json:"fills"`
	// Error is set when the account could not be valued at the end of the window.
	Error string `json:"error,omitempty"`
}

type SweepResult struct {
	ID       string `json:"id"`
	Strategy string `json:"strategy"`
	Seed     int64  `json:"seed"`

	// Trials are ordered by ticker, in the order they were simulated.
	Trials []TrialResult `json:"trials"`
	// Skipped lists tickers whose history is shorter than the window.
	Skipped []string `json:"skipped,omitempty"`
	Failed  int      `json:"failed"`

	Summary analysis.Summary        `json:"summary"`
	Ranking []analysis.RankedTicker `json:"ranking"`
}

// Outcomes converts the successful trials for reporting.
func (r *SweepResult) Outcomes() []analysis.Outcome {
	out := make([]analysis.Outcome, 0, len(r.Trials))
	for _, t := range r.Trials {
		if t.Error != "" {
			continue
		}
		out = append(out, analysis.Outcome{Ticker: t.Ticker, Ratio: t.Ratio, Exited: t.Aborted})
	}
	return out
}

// ErrNoEligibleTickers is returned when every ticker is shorter than the sweep window.
var ErrNoEligibleTickers = errors.New("no ticker has enough history for the sweep window")

type trialPlan struct {
	index  int
	ticker string
	seed   int64
}

func (spec SweepSpec) validate() error {
	switch {
	case len(spec.Tickers) == 0:
		return fmt.Errorf("%w: no tickers", ErrInvalidRun)
	case spec.Trials <= 0:
		return fmt.Errorf("%w: trials must be > 0", ErrInvalidRun)
	case spec.Window <= 0:
		return fmt.Errorf("%w: window must be > 0", ErrInvalidRun)
	case spec.Step <= 0:
		return fmt.Errorf("%w: step must be > 0", ErrInvalidRun)
	}
	return nil
}

// Sweep runs spec.Trials randomized windows. Each trial picks a ticker
// uniformly from those with enough history, starts at a random bar and runs
// for spec.Window, shifted back when it would pass the last bar. Trials are
// visited sorted by ticker so each worker loads every series once. Results
// are deterministic for a given seed regardless of the worker count.
func (s *Simulator) Sweep(ctx context.Context, spec SweepSpec) (*SweepResult, error) {
	if err := spec.validate(); err != nil {
		return nil, err
	}
	if spec.Workers <= 0 {
		spec.Workers = 1
	}

	eligible, skipped, err := s.eligibleTickers(spec.Tickers, spec.Window)
	if err != nil {
		return nil, err
	}
	if len(eligible) == 0 {
		return nil, ErrNoEligibleTickers
	}

	rng := rand.New(rand.NewSource(spec.Seed))
	plans := make([]trialPlan, spec.Trials)
	for i := range plans {
		plans[i] = trialPlan{ticker: eligible[rng.Intn(len(eligible))], seed: rng.Int63()}
	}
	sort.SliceStable(plans, func(i, j int) bool { return plans[i].ticker < plans[j].ticker })
	for i := range plans {
		plans[i].index = i
	}

	// Contiguous runs of one ticker are dealt to workers round-robin.
	var groups [][]trialPlan
	for i := 0; i < len(plans); {
		j := i
		for j < len(plans) && plans[j].ticker == plans[i].ticker {
			j++
		}
		groups = append(groups, plans[i:j])
		i = j
	}

	res := &SweepResult{
		ID:       uuid.NewString(),
		Strategy: spec.Strategy.Name,
		Seed:     spec.Seed,
		Trials:   make([]TrialResult, len(plans)),
		Skipped:  skipped,
	}
	s.log.Info("sweep starting",
		zap.String("sweep_id", res.ID),
		zap.String("strategy", spec.Strategy.Name),
		zap.Int("trials", spec.Trials),
		zap.Int("tickers", len(eligible)),
		zap.Strings("skipped", skipped),
		zap.Int("workers", spec.Workers),
	)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < spec.Workers; w++ {
		var mine [][]trialPlan
		for i := w; i < len(groups); i += spec.Workers {
			mine = append(mine, groups[i])
		}
		if len(mine) == 0 {
			continue
		}
		g.Go(func() error {
			return s.sweepWorker(gctx, res, spec, mine)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, t := range res.Trials {
		if t.Error != "" {
			res.Failed++
		}
	}
	outcomes := res.Outcomes()
	res.Summary = analysis.Summarize(outcomes, nil)
	res.Ranking = analysis.RankByMeanRatio(outcomes)

	s.log.Info("sweep complete",
		zap.String("sweep_id", res.ID),
		zap.Int("trials", len(res.Trials)),
		zap.Int("failed", res.Failed),
		zap.Float64("mean_ratio", res.Summary.Mean),
	)
	return res, nil
}

// sweepWorker runs its ticker groups on a private exchange and account.
// It writes only the result slots belonging to its own plans.
func (s *Simulator) sweepWorker(ctx context.Context, res *SweepResult, spec SweepSpec, groups [][]trialPlan) error {
	ex := market.NewExchange(s.Loader)
	broker, err := ledger.NewBroker(ex, spec.Costs.BuyCommission, spec.Costs.SellCommission)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRun, err)
	}
	acct := broker.NewAccount(spec.Costs.InitialCash)
	engine := New(s.Calendar, s.log)

	for _, group := range groups {
		ticker := group[0].ticker
		err := ex.Load(ticker)
		metrics.IncSeriesLoad(err)
		if err != nil {
			return err
		}
		series, err := ex.Series(ticker)
		if err != nil {
			return err
		}
		if series.Len() == 0 {
			return fmt.Errorf("%s: %w", ticker, market.ErrNoData)
		}

		for _, plan := range group {
			if err := ctx.Err(); err != nil {
				return err
			}
			tr, err := s.runTrial(engine, acct, series, plan, spec)
			if err != nil {
				return err
			}
			tr.Ticker = ticker
			res.Trials[plan.index] = tr

			if err := s.Recorder.RecordTrial(&recorder.Trial{
				SweepID:     res.ID,
				TrialID:     tr.ID,
				Strategy:    spec.Strategy.Name,
				Ticker:      ticker,
				Start:       tr.Start,
				End:         tr.End,
				ExitTime:    tr.ExitTime,
				Aborted:     tr.Aborted,
				InitialCash: spec.Costs.InitialCash,
				FinalValue:  tr.FinalValue,
				Ratio:       tr.Ratio,
				Commission:  tr.Commission,
				Fills:       tr.Fills,
			}); err != nil {
				return fmt.Errorf("record trial: %w", err)
			}
		}
		ex.Unload(ticker)
	}
	return nil
}

func (s *Simulator) runTrial(engine *Engine, acct *ledger.Account, series *model.Series, plan trialPlan, spec SweepSpec) (TrialResult, error) {
	rng := rand.New(rand.NewSource(plan.seed))
	loc := s.Calendar.Location

	startBar := series.At(rng.Intn(series.Len()))
	lastBar, _ := series.Last()
	start := time.Unix(startBar.Timestamp, 0).In(loc)
	end := start.Add(spec.Window)
	if end.Unix() > lastBar.Timestamp {
		end = time.Unix(lastBar.Timestamp, 0).In(loc)
		start = end.Add(-spec.Window)
	}

	acct.Reset()
	strat, err := BuildStrategy(spec.Strategy, acct, []string{plan.ticker}, BuildDeps{
		Location:   loc,
		Rand:       rng,
		LuckyTable: s.LuckyTable,
	})
	if err != nil {
		return TrialResult{}, err
	}

	tr := TrialResult{ID: uuid.NewString(), Start: start, End: end}
	r, err := engine.Run(strat, start, end, spec.Step)
	if err != nil && !errors.Is(err, ErrValuation) {
		return TrialResult{}, err
	}
	tr.Aborted = r.Aborted
	tr.Commission = r.CommissionPaid
	tr.Fills = len(r.Fills)
	if r.Aborted {
		tr.ExitTime = r.AbortedAt
	}

	outcome := metrics.OutcomeHeld
	switch {
	case err != nil:
		tr.Error = err.Error()
		outcome = metrics.OutcomeFailed
		s.log.Warn("trial valuation failed", zap.String("ticker", plan.ticker), zap.Error(err))
	case r.Aborted:
		outcome = metrics.OutcomeExited
	}
	if err == nil {
		tr.FinalValue = r.FinalValue
		tr.Ratio = r.Return()
	}
	metrics.ObserveTrial(r.Strategy, outcome, tr.Ratio, r.Fills)
	return tr, nil
}

// span returns the seconds between a ticker's first and last bar. Loaders that
// implement market.BoundsReader are asked for those two bars only.
func (s *Simulator) span(ticker string) (int64, error) {
	if br, ok := s.Loader.(market.BoundsReader); ok {
		first, last, err := br.Bounds(ticker)
		if errors.Is(err, market.ErrNoData) {
			return 0, nil
		}
		if err != nil {
			return 0, err
		}
		return last.Timestamp - first.Timestamp, nil
	}
	series, err := s.Loader.Load(ticker)
	metrics.IncSeriesLoad(err)
	if err != nil {
		return 0, err
	}
	return series.Span(), nil
}

// eligibleTickers keeps tickers whose first-to-last bar span covers window.
func (s *Simulator) eligibleTickers(tickers []string, window time.Duration) (eligible, skipped []string, err error) {
	seen := map[string]bool{}
	for _, t := range tickers {
		if seen[t] {
			continue
		}
		seen[t] = true

		span, err := s.span(t)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s: %w", t, err)
		}
		if time.Duration(span)*time.Second >= window {
			eligible = append(eligible, t)
		} else {
			skipped = append(skipped, t)
		}
	}
	sort.Strings(eligible)
	return eligible, skipped, nil
}
