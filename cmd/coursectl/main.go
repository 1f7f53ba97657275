package main

import (
	"fmt"
	"os"
	_ "time/tzdata"

	"github.com/joho/godotenv"

	"github.com/coursebot/backend/internal/infrastructure/config"
	applog "github.com/coursebot/backend/internal/infrastructure/log"
	"github.com/coursebot/backend/internal/interfaces/cli"
	"github.com/coursebot/backend/internal/wire"
)

func main() {
	_ = godotenv.Load()

	applog.Init(applog.FromEnv(applog.CLIDefaults()))

	load := func() (*wire.Toolkit, func(), error) {
		cfg, err := config.LoadDefault()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		return wire.InitializeToolkit(cfg)
	}

	if err := cli.Execute(load); err != nil {
		os.Exit(1)
	}
}
