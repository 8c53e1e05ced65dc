// Package main is the entry point for the repoman CLI.
package main

import (
	"os"

	"github.com/jwbla/repoman/cmd/repoman/app"
	"github.com/jwbla/repoman/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
