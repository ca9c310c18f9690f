package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/algo/arbitrage"
	"main/internal/bus"
	"main/internal/engine"
	"main/internal/ops"
	"main/internal/recorder"
)

func main() {
	configPath := flag.String("config", "config.json", "Path to JSON config")
	profileAddr := flag.String("profile-addr", "", "Pyroscope server address (empty=disabled)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded, err := ops.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if *profileAddr != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "arb",
			ServerAddress:   *profileAddr,
			Tags: map[string]string{
				"env": loaded.Env,
			},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	ps := bus.New()
	eng, err := engine.New(ps, loaded)
	if err != nil {
		log.Fatalf("engine build failed: %v", err)
	}

	var sink arbitrage.Recorder
	writer, err := recorder.NewCSVWriter(loaded.Recorder)
	if err != nil {
		log.Fatalf("snapshot writer failed: %v", err)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logs.Errorf("close snapshot writer: %+v", err)
		}
	}()
	sink = writer

	if loaded.Postgres != nil {
		store, err := recorder.NewStore(*loaded.Postgres)
		if err != nil {
			log.Fatalf("snapshot store failed: %v", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logs.Errorf("close snapshot store: %+v", err)
			}
		}()
		sink = teeRecorder{writer, store}
	}

	strategy := arbitrage.NewDirectArbitrage(loaded.Trading, eng.Broker(), sink, loaded.Strategy)
	eng.AttachAlgorithm(ctx, strategy)
	eng.Run(ctx)
	logs.Infof("direct arbitrage running in %s, trading=%t", loaded.Env, loaded.Trading)

	select {
	case <-ctx.Done():
	case <-sys.Shutdown():
	}
	logs.Info("shutting down")
	ps.StopAll()
}

// teeRecorder fans a snapshot out to every sink, keeping the first error.
type teeRecorder []arbitrage.Recorder

func (t teeRecorder) Record(mamb arbitrage.MinAskMaxBid) error {
	var firstErr error
	for _, r := range t {
		if err := r.Record(mamb); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
