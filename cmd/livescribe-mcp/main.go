package main

import (
	"context"
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/pitabwire/frame/config"

	lsconfig "github.com/livescribe/livescribe/config"
	"github.com/livescribe/livescribe/internal/breaker"
	"github.com/livescribe/livescribe/internal/mcptools"
	"github.com/livescribe/livescribe/pkg/enrich"
	"github.com/livescribe/livescribe/pkg/language"
)

const version = "0.1.0"

func main() {
	ctx := context.Background()

	cfg, err := config.LoadWithOIDC[lsconfig.LiveScribeConfig](ctx)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	provider, err := enrich.NewProvider(cfg.AIProvider, cfg.ProviderConfig())
	if err != nil {
		log.Fatalf("AI provider %q: %v", cfg.AIProvider, err)
	}
	ai := enrich.NewClient(provider, enrich.WithBreaker(breaker.Config{
		FailureThreshold: cfg.CBFailThreshold,
		ResetTimeout:     lsconfig.Seconds(cfg.CBResetTimeoutSec),
	}))

	keywords := language.NewLoader(cfg.KeywordDir)
	if err := keywords.LoadAll(); err != nil {
		log.Printf("warning: loading keyword profiles: %v", err)
	}

	// stdout carries the protocol; logs go to stderr.
	if err := server.ServeStdio(mcptools.NewServer(version, ai, keywords.Detect)); err != nil {
		log.Fatalf("mcp server: %v", err)
	}
}
