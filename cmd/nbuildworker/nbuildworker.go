// Command nbuildworker is the standalone worker daemon: it announces its
// availability in a shared brokerage directory and waits to be handed
// jobs by an nbuild orchestrator. Job execution itself is an external
// collaborator's concern; this daemon owns only the CLI, availability
// announcement, and signal handling.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"os/user"
	"time"

	"github.com/nodegraph/nbuild"
	"github.com/nodegraph/nbuild/internal/brokerage"
	"github.com/nodegraph/nbuild/internal/workeropts"
)

// periodicRestartInterval is how often -periodicrestart causes the daemon
// to exit cleanly (the process supervisor, e.g. systemd or a parent
// script, is expected to restart it) — a workaround for long-lived
// process memory fragmentation.
const periodicRestartInterval = 12 * time.Hour

func main() {
	log.SetFlags(0)
	opts, err := workeropts.Parse("nbuildworker", os.Args[1:])
	if err != nil {
		os.Exit(1)
	}
	runErr := run(opts)
	// RunAtExit fires after run returns on every path so the token-file
	// withdrawal registered in run still happens ahead of log.Fatalf's
	// os.Exit below.
	if err := nbuild.RunAtExit(); err != nil {
		log.Printf("nbuildworker: at-exit: %v", err)
	}
	if runErr != nil {
		log.Fatalf("nbuildworker: %v", runErr)
	}
}

func run(opts workeropts.Options) error {
	if opts.Mode == brokerage.ModeDisabled {
		log.Printf("mode=disabled: not announcing availability")
		select {}
	}

	dir := os.Getenv("NBUILD_BROKERAGE_DIR")
	if dir == "" {
		return fmt.Errorf("NBUILD_BROKERAGE_DIR must be set (shared brokerage directory)")
	}

	ctx, cancel := nbuild.InterruptibleContext()
	defer cancel()

	abort := &nbuild.AbortFlag{}
	abort.WatchContext(ctx)

	broker := brokerage.New(dir, currentToken(opts))
	if err := broker.Announce(); err != nil {
		return err
	}
	nbuild.RegisterAtExit(broker.Withdraw)
	log.Printf("announced availability in %s (mode=%s, cpus=%d)", dir, opts.Mode, opts.CPUs)

	return mainLoop(ctx, abort, broker, opts)
}

func mainLoop(ctx context.Context, abort *nbuild.AbortFlag, broker *brokerage.Broker, opts workeropts.Options) error {
	refresh := time.NewTicker(brokerage.RefreshInterval)
	defer refresh.Stop()
	sweep := time.NewTicker(brokerage.SweepInterval)
	defer sweep.Stop()

	var restart <-chan time.Time
	if opts.PeriodicRestart {
		t := time.NewTicker(periodicRestartInterval)
		defer t.Stop()
		restart = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-refresh.C:
			if err := broker.Refresh(currentToken(opts)); err != nil && opts.Debug {
				log.Printf("refresh: %v", err)
			}
		case <-sweep.C:
			dir := os.Getenv("NBUILD_BROKERAGE_DIR")
			if removed, err := brokerage.Sweep(dir); err == nil && removed > 0 {
				log.Printf("swept %d stale token(s)", removed)
			}
		case <-restart:
			log.Printf("periodic restart: exiting for supervisor to relaunch")
			return nil
		}
		if abort.IsSet() {
			return nil
		}
	}
}

func currentToken(opts workeropts.Options) brokerage.Token {
	hostname, _ := os.Hostname()
	u, _ := user.Current()
	username := "unknown"
	if u != nil {
		username = u.Username
	}

	var domain, fqdn string
	if addrs, err := net.LookupCNAME(hostname); err == nil {
		fqdn = addrs
		domain = fqdn
	}

	ip := firstNonLoopbackIPv4()

	return brokerage.Token{
		Version:    "1",
		User:       username,
		HostName:   hostname,
		DomainName: domain,
		FQDN:       fqdn,
		IPv4:       ip,
		CPUsUsed:   0,
		CPUsTotal:  opts.CPUs,
		MemoryMiB:  opts.MinFreeMemoryMiB,
		Mode:       opts.Mode,
	}
}

func firstNonLoopbackIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	return ""
}
