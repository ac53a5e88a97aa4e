// dogexec runs one action sequence against the robot and exits. The task
// service spawns it per task so a wedged or crashed run never takes the
// service down. Stdout carries exactly one JSON result document; all
// logging goes to stderr.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/openquad/go-dogctl/internal/config"
	"github.com/openquad/go-dogctl/internal/log"
	"github.com/openquad/go-dogctl/pkg/executor"
	"github.com/openquad/go-dogctl/pkg/heartbeat"
	"github.com/openquad/go-dogctl/pkg/telemetry"
	"github.com/openquad/go-dogctl/pkg/transport"
)

// Exit codes, matching the task service's expectations.
const (
	exitOK       = 0
	exitSequence = 1 // at least one action failed
	exitSetup    = 2 // never reached the point of running actions
)

func main() {
	os.Exit(run())
}

func run() int {
	def := config.Default()
	var (
		payloadJSON = flag.String("json", "", "action sequence as JSON")
		dogIP       = flag.String("dog-ip", def.DogIP, "robot command host")
		dogPort     = flag.Int("dog-port", def.DogPort, "robot command port")
		bindIPs     = flag.String("bind-ips", strings.Join(def.BindIPs, ","), "comma-separated telemetry bind addresses, tried in order")
		bindPort    = flag.Int("bind-port", def.BindPort, "telemetry bind port")
		gear        = flag.Int("gear", def.Gear, "locomotion speed gear (1..6)")
		logLevel    = flag.String("log-level", def.LogLevel, "debug, info, warn or error")
	)
	flag.Parse()
	log.Init(*logLevel)

	emit := func(rep executor.Report) {
		if err := json.NewEncoder(os.Stdout).Encode(rep); err != nil {
			log.Error("write result document", "err", err)
		}
	}

	if *payloadJSON == "" {
		emit(executor.Report{Error: "missing --json payload"})
		return exitSetup
	}
	var payload executor.Payload
	if err := json.Unmarshal([]byte(*payloadJSON), &payload); err != nil {
		emit(executor.Report{Error: "decode payload: " + err.Error()})
		return exitSetup
	}
	if *gear < 1 || *gear > 6 {
		emit(executor.Report{Error: fmt.Sprintf("gear %d out of range 1..6", *gear)})
		return exitSetup
	}

	dogAddr := fmt.Sprintf("%s:%d", *dogIP, *dogPort)
	conn, err := transport.Dial(dogAddr, strings.Split(*bindIPs, ","), *bindPort)
	if err != nil {
		emit(executor.Report{Error: "connect: " + err.Error()})
		return exitSetup
	}
	log.Info("connected", "dog", dogAddr, "telemetry", conn.LocalAddr().String())

	watcher := telemetry.NewWatcher(conn)
	watcher.Start()
	hb := heartbeat.New(conn)
	hb.Start()
	defer func() {
		hb.Stop()
		// Closing the socket unblocks the watcher's pending read.
		conn.Close()
		watcher.Stop()
	}()

	exec := executor.New(conn, watcher, executor.WithGear(*gear))
	results, err := exec.Run(payload)
	if err != nil {
		emit(executor.Report{Results: results, Error: err.Error()})
		return exitSetup
	}

	front, rear := watcher.Distances()
	log.Info("ranger distances", "front_m", front, "rear_m", rear)

	rep := executor.NewReport(results, len(payload.Actions))
	emit(rep)
	if !rep.OK {
		return exitSequence
	}
	return exitOK
}
