// dogserver is the task orchestration service: it accepts action
// sequences over HTTP, runs them one at a time in dogexec worker
// processes and serves results and worker logs.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/openquad/go-dogctl/internal/config"
	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/task"
	"github.com/openquad/go-dogctl/pkg/web"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log.Init(cfg.LogLevel)

	svc, err := task.New(task.Config{
		DogAddr:   cfg.DogAddr(),
		WorkerBin: cfg.WorkerBin,
		WorkerArgs: []string{
			"--dog-ip", cfg.DogIP,
			"--dog-port", strconv.Itoa(cfg.DogPort),
			"--bind-ips", strings.Join(cfg.BindIPs, ","),
			"--bind-port", strconv.Itoa(cfg.BindPort),
			"--gear", strconv.Itoa(cfg.Gear),
			"--log-level", cfg.LogLevel,
		},
		LogLines:    cfg.LogLines,
		JournalPath: cfg.JournalPath,
	})
	if err != nil {
		log.Error("task service", "err", err)
		os.Exit(1)
	}

	server := web.NewServer(svc)
	svc.SetLogSink(server.LogLine)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("shutting down", "signal", sig.String())
		if err := server.Shutdown(); err != nil {
			log.Warn("http shutdown", "err", err)
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Listen, cfg.Port)
	if err := server.Listen(addr); err != nil {
		log.Error("http server", "err", err)
	}

	if err := svc.Close(); err != nil {
		log.Warn("task service shutdown", "err", err)
	}
	log.Info("bye")
}
