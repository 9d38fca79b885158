package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alexwday/web-research/config"
	"github.com/alexwday/web-research/internal/research"
	srv "github.com/alexwday/web-research/internal/server"
	"github.com/alexwday/web-research/provider"
	"github.com/alexwday/web-research/session"
	"github.com/alexwday/web-research/tools/web_fetch"
	"github.com/alexwday/web-research/tools/web_search"
)

func serveCMD() *cobra.Command {
	var serveAddr string
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run the research assistant server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.LoadConfig(cfgPath)
			if serveAddr != "" {
				cfg.Server.Address = serveAddr
			}

			llm, err := provider.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			searcher, err := web_search.NewWebSearcher(
				web_search.Provider(cfg.Search.Provider),
				cfg.Search.APIKey(),
				cfg.Search.Timeout,
			)
			if err != nil {
				return err
			}
			fetcher, err := web_fetch.NewWebFetcher(
				web_fetch.FetcherType(cfg.Fetch.Provider),
				cfg.Fetch.Timeout,
				cfg.Fetch.MaxContentChars,
				cfg.Fetch.UserAgent,
			)
			if err != nil {
				return err
			}

			orchLogger := log.New(log.Writer(), "[ORCH] ", log.LstdFlags)
			registry := research.NewRegistry()
			executor := research.NewExecutor(registry, searcher, fetcher, cfg.Search.MaxResults, orchLogger)
			engine := research.NewEngine(llm, registry, executor, cfg.Agent.MaxSteps, orchLogger)

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.New(*cfg, engine, session.NewStore()).Run(ctx)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")

	return serve
}
