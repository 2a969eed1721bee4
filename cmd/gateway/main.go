// Command gateway serves the live world over HTTP/JSON with a synthetic
// tape running underneath: noise traders plus a market maker stepped by
// the world's deterministic tick loop.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"skoll/internal/agent"
	"skoll/internal/engine"
	"skoll/internal/gateway"
	"skoll/internal/world"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml/toml/json)")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := gateway.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	w := world.NewLiveWorld(engine.New(engine.NewRuleSet(cfg.EngineConfig())))

	nt := agent.DefaultNoiseTraderConfig()
	nt.TickSize = cfg.TickSize
	nt.LotSize = cfg.LotSize
	nt.MinQty = cfg.MinQty
	for i := 0; i < cfg.NoiseTraders; i++ {
		w.AddAgent(agent.NewNoiseTrader(uint64(i)+1, nt))
	}
	mm := agent.DefaultMarketMakerParams()
	mm.TickSize = cfg.TickSize
	mm.LotSize = cfg.LotSize
	mm.MinQty = cfg.MinQty
	w.AddAgent(agent.NewMarketMaker(uint64(cfg.NoiseTraders)+1, mm))

	w.Start(cfg.Seed, cfg.HorizonSeconds, world.Config{DtNs: cfg.DtNs, WallClock: true})
	defer w.Stop()

	reg := prometheus.NewRegistry()
	srv := gateway.NewServer(w, reg)
	if err := srv.Run(ctx, cfg.Addr, reg); err != nil {
		log.Fatal().Err(err).Msg("gateway exited")
	}
}
