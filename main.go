package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"github.com/sirupsen/logrus"

	"github.com/gambitchess/gambit/internal/auth"
	"github.com/gambitchess/gambit/internal/config"
	"github.com/gambitchess/gambit/internal/database"
	"github.com/gambitchess/gambit/internal/handlers"
	"github.com/gambitchess/gambit/internal/journal"
	"github.com/gambitchess/gambit/internal/middleware"
	"github.com/gambitchess/gambit/internal/scheduler"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if config.Get("LOG_LEVEL", "info") == "debug" {
		log.SetLevel(logrus.DebugLevel)
	}

	if err := auth.Init(); err != nil {
		log.Fatalf("auth init failed: %v", err)
	}

	// Postgres and Redis are optional: without them the server plays
	// matches in memory and skips persistence.
	var results *database.ResultStore
	if config.Get("PG_HOST", "") != "" {
		pool, err := database.Connect(context.Background())
		if err != nil {
			log.Fatalf("database connect failed: %v", err)
		}
		defer pool.Close()
		results = database.NewResultStore(pool)
		log.Info("result store connected")
	}

	var matchJournal *journal.Journal
	if config.Get("REDIS_ADDR", "") != "" {
		j, err := journal.Connect(log)
		if err != nil {
			log.Fatalf("journal connect failed: %v", err)
		}
		matchJournal = j
		log.Info("match journal connected")
	}

	srv := handlers.NewServer(log, matchJournal, results)

	sched := scheduler.New(log)
	sched.Register("queue_scan", 5*time.Second, srv.ScanQueue)
	sched.Register("queue_timeouts", 5*time.Second, srv.SweepQueueTimeouts)
	sched.Register("disconnect_sweep", time.Second, srv.SweepDisconnects)
	sched.Register("finished_sweep", 30*time.Second, srv.SweepFinished)
	sched.Start(context.Background())
	defer sched.Stop()

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	mux.Handle("/ws", srv.WSHandler())

	server := &http.Server{
		Handler:      middleware.LogMiddleware(log)(mux),
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
	}

	port := config.Get("GAMBIT_PORT", "8080")
	l, err := net.Listen("tcp", fmt.Sprintf(":%s", port))
	if err != nil {
		log.Fatalf("failed to listen: %v", err)
	}
	log.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		log.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		log.Infof("terminating: %v", sig)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warnf("server shutdown: %v", err)
	}
}
