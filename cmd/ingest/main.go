package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/leadstack/go-crm-system/shared/config"
	"github.com/leadstack/go-crm-system/shared/ingest"
)

// ingest loads a JSON lead feed into the database and prints the per-record
// report. Records that fail validation or reference unknown agents or
// organizations are skipped, not fatal.
func main() {
	file := flag.String("file", "", "path to the JSON feed (required)")
	flag.Parse()

	if *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	if err := godotenv.Load(); err != nil {
		logrus.Warn("No .env file found, using environment variables")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		logrus.Fatal("Failed to read feed: ", err)
	}

	var records []ingest.LeadRecord
	if err := json.Unmarshal(data, &records); err != nil {
		logrus.Fatal("Failed to parse feed: ", err)
	}

	db, err := config.ConnectDatabase()
	if err != nil {
		logrus.Fatal("Failed to connect to database: ", err)
	}
	if err := config.MigrateDatabase(db); err != nil {
		logrus.Fatal("Failed to migrate database: ", err)
	}

	report := ingest.NewIngestor(db).Ingest(context.Background(), records)

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logrus.Fatal("Failed to render report: ", err)
	}
	fmt.Println(string(out))

	if report.Failed > 0 {
		os.Exit(1)
	}
}
