// Command skoll runs the offline simulator: either synthetic Poisson
// flow replayed through the engine, or a fixed-step agents run in the
// batch world. Results land in CSV files.
package main

import (
	"flag"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/agent"
	"skoll/internal/engine"
	"skoll/internal/sim"
	"skoll/internal/world"
)

func main() {
	var (
		seed      = flag.Uint64("seed", 1, "world seed")
		horizon   = flag.Float64("horizon", 2.0, "horizon in seconds")
		agents    = flag.Bool("agents", false, "run the agents world instead of raw flow")
		dtNs      = flag.Int64("dt", 100_000, "tick step in nanoseconds (agents mode)")
		tradesOut = flag.String("trades", "trades.csv", "trades output path")
		topOut    = flag.String("top", "top.csv", "top-of-book output path")
		acctOut   = flag.String("accounts", "accounts.csv", "accounts output path (agents mode)")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *agents {
		runAgents(*seed, *horizon, *dtNs, *tradesOut, *topOut, *acctOut)
		return
	}
	runFlow(*seed, *horizon, *tradesOut, *topOut)
}

func runFlow(seed uint64, horizon float64, tradesOut, topOut string) {
	gen := sim.NewFlowGenerator(seed, sim.DefaultFlowParams())
	events := gen.Generate(0, horizon)

	s := sim.NewSimulator(engine.New(engine.NewRuleSet(engine.DefaultConfig())))
	res := s.Run(events)

	mustWrite(tradesOut, func(w io.Writer) error { return sim.WriteTradesCSV(w, res.Trades) })
	mustWrite(topOut, func(w io.Writer) error { return sim.WriteTopCSV(w, res.Tops) })

	log.Info().
		Int("events", len(events)).
		Int("trades", len(res.Trades)).
		Uint32("cancel_failures", res.CancelFailures).
		Uint32("modify_failures", res.ModifyFailures).
		Msg("flow run complete")
}

func runAgents(seed uint64, horizon float64, dtNs int64, tradesOut, topOut, acctOut string) {
	w := world.NewLiveWorld(engine.New(engine.NewRuleSet(engine.DefaultConfig())))

	nt := agent.DefaultNoiseTraderConfig()
	w.AddAgent(agent.NewNoiseTrader(1, nt))
	w.AddAgent(agent.NewMarketMaker(2, agent.DefaultMarketMakerParams()))
	w.AddAgent(agent.NewNoiseTrader(3, nt))

	w.Start(seed, horizon, world.Config{DtNs: dtNs})
	if err := w.Wait(); err != nil {
		log.Fatal().Err(err).Msg("agents run failed")
	}

	trades := w.Trades()
	tops := w.TopSeries()

	simTops := make([]sim.BookTop, 0, len(tops))
	for _, t := range tops {
		simTops = append(simTops, sim.BookTop{Ts: t.Ts, BestBid: t.BestBid, BestAsk: t.BestAsk, Mid: t.Mid})
	}

	mustWrite(tradesOut, func(out io.Writer) error { return sim.WriteTradesCSV(out, trades) })
	mustWrite(topOut, func(out io.Writer) error { return sim.WriteTopCSV(out, simTops) })
	mustWrite(acctOut, func(out io.Writer) error { return sim.WriteAccountsCSV(out, w.Now(), w.Accounts()) })

	log.Info().
		Int("trades", len(trades)).
		Int("tops", len(tops)).
		Msg("agents run complete")
}

func mustWrite(path string, fn func(io.Writer) error) {
	if err := sim.WriteFile(path, fn); err != nil {
		log.Fatal().Err(err).Str("path", path).Msg("csv write failed")
	}
}
