package main

import (
	"fmt"
	"os"

	"amalnama/internal/app"
	"amalnama/internal/cli"
	"amalnama/internal/config"
)

func main() {
	root := cli.NewRootCommand(func() (*app.App, error) {
		cfg := config.Load()
		if err := app.ConfigureLogging(cfg.LogLevel); err != nil {
			return nil, err
		}
		return app.New(cfg)
	})
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
