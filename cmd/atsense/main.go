package main

import (
	"os"

	"atsense-api/internal/shared/telemetry"
)

func main() {
	defer telemetry.Sync()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
