// Command cheques-export writes the check report for a filter query without
// starting the server.
//
//	cheques-export -format xlsx -query 'BANCO=Galicia&VENCIDOS=true'
package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"time"

	"cheques/internal/cli"
	"cheques/internal/dashboard"
	"cheques/internal/export"
	"cheques/internal/log"
)

func main() {
	format := flag.String("format", "csv", "report format: csv or xlsx")
	query := flag.String("query", "", "filter, sort and page parameters as in the dashboard URL")
	out := flag.String("out", "", "output file (default reporte_cheques.<format>)")
	flag.Parse()

	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	if envErr != nil {
		logger.Warn("Could not load .env", log.FieldError, envErr.Error())
	}
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(cfg.HTTPTimeout, *format, *query, *out, logger, func(ctx context.Context) (*dashboard.Store, func(), error) {
		be, err := cli.OpenBackend(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		rows, err := be.Backend.Fetch(ctx)
		if err != nil {
			be.Close()
			return nil, nil, err
		}
		store := dashboard.NewStore(dashboard.Options{Location: cfg.Location(), Logger: logger})
		store.ReplaceAll(rows)
		return store, func() { _ = be.Close() }, nil
	}); err != nil {
		logger.Error("Export failed", log.FieldError, err.Error(), log.FieldOperation, log.OpExport)
		os.Exit(1)
	}
}

func run(timeout time.Duration, format, query, out string, logger *log.Logger, open func(context.Context) (*dashboard.Store, func(), error)) error {
	q, err := url.ParseQuery(query)
	if err != nil {
		return fmt.Errorf("parse query: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	store, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	records := store.Preview(dashboard.ParseQuery(q)).Filtered
	now := time.Now()

	var buf bytes.Buffer
	switch format {
	case "csv":
		if out == "" {
			out = export.CSVFilename
		}
		err = export.WriteCSV(&buf, records, now)
	case "xlsx":
		if out == "" {
			out = export.XLSXFilename
		}
		err = export.WriteXLSX(&buf, records, now)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
	if err != nil {
		return err
	}

	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Info("Report written", "file", out, log.FieldRecords, len(records))
	return nil
}
