// cmd/main.go
package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/iMithrellas/mqcast/internal/config"
	"github.com/iMithrellas/mqcast/internal/daemon"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	configDir, err := os.UserConfigDir()
	if err != nil {
		log.Println("Error getting user config directory:", err)
		configDir = "/etc"
	}
	configPath := configDir + "/mqcast/config.toml"
	if err := config.GenerateConfig(configPath); err != nil {
		log.Println("Error generating config file:", err)
	}
	if err := config.LoadConfig(configPath); err != nil {
		log.Fatalln("Error loading config:", err)
	}

	cfg, err := config.Resolve()
	if err != nil {
		log.Fatalln("Invalid configuration:", err)
	}

	switch cfg.Mode {
	case config.ModeWatch:
		err = daemon.RunWatch(cfg.WatchURL, cfg.Topic)
	default:
		err = daemon.RunDaemon(cfg)
	}
	if err != nil {
		log.Fatalln(err)
	}
}
