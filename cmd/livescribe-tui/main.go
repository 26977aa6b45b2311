package main

import (
	"log"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/livescribe/livescribe/internal/tui"
)

type tuiConfig struct {
	ServerURL     string `envDefault:"http://localhost:8080" env:"LIVESCRIBE_URL"`
	Token         string `envDefault:""                      env:"LIVESCRIBE_TOKEN"`
	Language      string `envDefault:"pt-BR"                 env:"DEFAULT_LANGUAGE"`
	Notifications bool   `envDefault:"true"                  env:"DESKTOP_NOTIFICATIONS"`
}

func main() {
	cfg, err := env.ParseAs[tuiConfig]()
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	model := tui.New(
		tui.NewClient(cfg.ServerURL, cfg.Token),
		tui.NewNotifier(cfg.Notifications),
		cfg.Language,
	)
	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("running tui: %v", err)
	}
}
