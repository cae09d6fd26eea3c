// Command xcp-metricsd is the host-local metrics hub daemon (spec §1): it
// owns the canonical MetricSet, advances the round-robin store on a tick,
// and serves both the RPC router and the forwarded-HTTP adapter.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/gops/agent"
	"github.com/xcp-ng/xcp-metrics-go/internal/config"
	"github.com/xcp-ng/xcp-metrics-go/internal/hub"
	"github.com/xcp-ng/xcp-metrics-go/internal/producer"
	"github.com/xcp-ng/xcp-metrics-go/internal/rpcserver"
	"github.com/xcp-ng/xcp-metrics-go/internal/rrstore"
	"github.com/xcp-ng/xcp-metrics-go/internal/runtimeenv"
	"github.com/xcp-ng/xcp-metrics-go/internal/xlog"
)

func main() {
	var flagConfigFile string
	var flagGops bool
	flag.StringVar(&flagConfigFile, "config", "/etc/xcp-metricsd.json", "Overwrite the default config with `config.json`")
	flag.BoolVar(&flagGops, "gops", false, "Listen via github.com/google/gops/agent (for debugging)")
	flag.Parse()

	if flagGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			xlog.Fatalf("gops/agent.Listen failed: %s", err.Error())
		}
	}

	if err := runtimeenv.LoadEnv("./.env"); err != nil && !os.IsNotExist(err) {
		xlog.Fatalf("parsing './.env' file failed: %s", err.Error())
	}

	if err := config.Init(flagConfigFile); err != nil {
		xlog.Fatalf("loading config failed: %s", err.Error())
	}
	xlog.SetLogLevel(config.Keys.LogLevel)
	xlog.SetLogDateTime(config.Keys.LogDateTime)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := hub.New()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.Run(ctx)
	}()

	sizes := rrstore.Sizes{
		FiveSecond: config.Keys.RingSizes.FiveSecond,
		OneMinute:  config.Keys.RingSizes.OneMinute,
		OneHour:    config.Keys.RingSizes.OneHour,
		OneDay:     config.Keys.RingSizes.OneDay,
	}
	store := rrstore.New(h, sizes)

	sched, err := producer.NewScheduler()
	if err != nil {
		xlog.Fatalf("building scheduler failed: %s", err.Error())
	}
	sched.Start()
	defer sched.Shutdown()

	go tickStoreForever(ctx, store)

	router := rpcserver.NewRouter(h, sched)
	server := rpcserver.NewServer(config.Keys.SocketPathFor(), router)
	forwarded := rpcserver.NewForwardedServer(config.Keys.SocketPathFor()+".forwarded", store)

	// Bind both sockets first, then drop privileges, then accept
	// connections - the same ordering cmd/cc-backend/server.go uses around
	// a privileged TCP port.
	rpcListener, err := server.Listen()
	if err != nil {
		xlog.Fatalf("binding rpc socket failed: %s", err.Error())
	}
	forwardedListener, err := forwarded.Listen()
	if err != nil {
		xlog.Fatalf("binding forwarded-http socket failed: %s", err.Error())
	}

	if err := runtimeenv.DropPrivileges(config.Keys.User, config.Keys.Group); err != nil {
		xlog.Fatalf("error while preparing server start: %s", err.Error())
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := server.Serve(ctx, rpcListener); err != nil {
			xlog.Errorf("rpc server stopped: %s", err.Error())
		}
	}()
	go func() {
		defer wg.Done()
		if err := forwarded.Serve(ctx, forwardedListener); err != nil {
			xlog.Errorf("forwarded-http adapter stopped: %s", err.Error())
		}
	}()

	runtimeenv.SystemdNotify(true, "running")

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs

	runtimeenv.SystemdNotify(false, "stopping")
	cancel()
	wg.Wait()
}

// tickStoreForever advances the ring store on the same 5 s cadence as the
// legacy/typed producers (spec §4.7: "5 s granularity is the base tick").
func tickStoreForever(ctx context.Context, store *rrstore.Store) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.Tick(ctx); err != nil {
				xlog.Warnf("rrstore tick failed: %s", err.Error())
			}
		}
	}
}
