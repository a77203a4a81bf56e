package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"github.com/vocdoni/election-ledger/config"
	"github.com/vocdoni/election-ledger/log"
	"github.com/vocdoni/election-ledger/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	flag.StringVar(&cfg.DataDir, "datadir", cfg.DataDir, "directory of the ledger database")
	flag.StringVar(&cfg.DBType, "dbType", cfg.DBType, "database backend")
	flag.StringVar(&cfg.LogLevel, "logLevel", cfg.LogLevel, "log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogOutput, "logOutput", cfg.LogOutput, "log output (stdout, stderr or a file path)")
	flag.StringVar(&cfg.AuthorityKeys, "authorityKeys", cfg.AuthorityKeys, "signing keys of the local authorities as id=hexkey,...")
	flag.IntVar(&cfg.ProverWorkers, "proverWorkers", cfg.ProverWorkers, "range proofs generated at once")
	flag.IntVar(&cfg.BatchSize, "batchSize", cfg.BatchSize, "pending votes that trigger a block")
	flag.DurationVar(&cfg.BatchTimeWindow, "batchTimeWindow", cfg.BatchTimeWindow, "longest wait of a pending vote before a block is produced")
	flag.DurationVar(&cfg.TickInterval, "tickInterval", cfg.TickInterval, "interval between checks of the pending votes")
	flag.DurationVar(&cfg.ReservationTTL, "reservationTTL", cfg.ReservationTTL, "lifetime of a voter reservation left by a crashed vote")
	devParams := flag.Bool("devParameters", false, "run an in-process range proof setup when no artifacts are configured")
	downloadTimeout := flag.Duration("downloadTimeout", 10*time.Minute, "timeout for downloading the range proof artifacts")
	flag.Parse()
	log.Init(cfg.LogLevel, cfg.LogOutput, nil)

	params, err := service.LoadParameters(cfg.RangeProof, *devParams, *downloadTimeout)
	if err != nil {
		log.Fatalf("cannot load range proof parameters: %v", err)
	}
	srv, err := service.NewLedger(cfg, params)
	if err != nil {
		log.Fatal(err)
	}
	if err := srv.Start(context.Background()); err != nil {
		log.Fatal(err)
	}
	log.Infow("election ledger running", "datadir", cfg.DataDir)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	log.Infow("shutting down")
	srv.Stop()
}
