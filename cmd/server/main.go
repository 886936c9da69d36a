// Command server runs the research-planning backend: the tree store,
// message bus, agents and HTTP surface wired together from one YAML
// config file, grounded on backend/main.py's startup sequence and
// hector's task-lifecycle conventions for graceful shutdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/konglinxi/resvizcopilot/internal/agent"
	"github.com/konglinxi/resvizcopilot/internal/config"
	"github.com/konglinxi/resvizcopilot/internal/httpapi"
	"github.com/konglinxi/resvizcopilot/internal/llmclient"
	"github.com/konglinxi/resvizcopilot/internal/logging"
	"github.com/konglinxi/resvizcopilot/internal/messagebus"
	"github.com/konglinxi/resvizcopilot/internal/metrics"
	"github.com/konglinxi/resvizcopilot/internal/project"
	"github.com/konglinxi/resvizcopilot/internal/retry"
	"github.com/konglinxi/resvizcopilot/internal/tree"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the server's YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logging.Init(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	reg := prometheus.NewRegistry()
	busMetrics := metrics.NewBusMetrics(reg)
	retryMetrics := metrics.NewRetryMetrics(reg)
	httpMetrics := metrics.NewHTTPMetrics(reg)

	// bus and store are mutually referential (the store publishes
	// through the bus; the bus resolves snapshots through the store), so
	// the bus is wired in two steps: construct it, build the store
	// against it, then attach the resolver that closes over the store.
	bus := messagebus.NewBus(
		messagebus.WithQueueDepth(cfg.Bus.QueueDepth),
		messagebus.WithMetrics(busMetrics),
		messagebus.WithLogger(log),
	)
	store := tree.NewStore(agent.NewTreeActionPublisher(bus))
	bus.SetSnapshotResolver(func(id string) (messagebus.Snapshot, bool) {
		view, ok := store.View(id)
		if !ok {
			return messagebus.Snapshot{}, false
		}
		return messagebus.Snapshot{ID: view.ID, CreatedAt: view.CreatedAt, Data: view.Data, Summary: view.Summary}, true
	})

	llmClient := llmclient.New(llmclient.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	}, log)
	generator := llmclient.NewGenerator(llmClient, bus)

	retryCfg := retry.Config{MaxRetries: cfg.Retry.MaxRetries, BaseDelay: cfg.Retry.BaseDelay, MaxDelay: cfg.Retry.MaxDelay}
	retryEngine := retry.New(retryCfg, bus, retryMetrics, log)

	autoResearchBase := agent.NewBase("auto_research_agent", store, bus, generator, retryEngine, log)
	chatBase := agent.NewBase("chat_agent", store, bus, generator, retryEngine, log)
	autoResearch := agent.NewAutoResearchAgent(autoResearchBase)
	chat := agent.NewChatAgent(chatBase)

	agents := map[string]*agent.Base{
		"auto_research_agent": autoResearch.Base,
		"chat_agent":          chat.Base,
	}

	var projectStore project.Store
	if cfg.Project.DataDir != "" {
		fileStore, err := project.NewFileStore(cfg.Project.DataDir)
		if err != nil {
			log.Error("failed to open project store", "error", err)
			os.Exit(1)
		}
		projectStore = fileStore
	} else {
		projectStore = project.NewMemoryStore()
	}

	server := httpapi.NewServer(httpapi.Deps{
		Store:    store,
		Bus:      bus,
		Agents:   agents,
		Projects: projectStore,
		Retry:    retryEngine,
		HTTP:     httpMetrics,
		Registry: reg,
		Log:      log,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("http server listening", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down http server")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
