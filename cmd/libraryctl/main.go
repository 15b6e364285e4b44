package main

import (
	"log"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:   "libraryctl",
		Short: "Administrative tooling for the library backend",
		Long:  "libraryctl dumps and restores catalog data as CSV and prints dashboard counters, talking directly to the database the API server uses.",
	}

	root.AddCommand(newExportCmd(), newImportCmd(), newStatsCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("libraryctl: %v", err)
	}
}
