package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/epitome/examportal/internal/app"
	"github.com/epitome/examportal/internal/export"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	var once = flag.Bool("once", false, "Export once and exit")
	flag.Parse()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	if !service.Config.Export.Enabled {
		logger.Error.Fatalf("Export is disabled, set [export] enabled = true")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	exporter, err := export.NewSheetsExporter(ctx, service.Config.Export, service.Ledger)
	if err != nil {
		logger.Error.Fatalf("Failed to initialize Google Sheets exporter: %v", err)
	}

	if *once {
		if err := exporter.Export(ctx); err != nil {
			logger.Error.Fatalf("Export failed: %v", err)
		}
		return
	}

	if err := exporter.Start(); err != nil {
		logger.Error.Fatalf("Failed to start exporter: %v", err)
	}
	defer exporter.Stop()

	logger.Info.Println("Exporting results to Google Sheets")
	<-ctx.Done()
	logger.Info.Println("Exporter stopped")
}
