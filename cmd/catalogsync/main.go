package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"catalogsync/internal/app"
	"catalogsync/internal/config"
	"catalogsync/internal/export"
	"catalogsync/internal/logger"
	"catalogsync/internal/reconcile"
)

func main() {
	cfg, err := config.Load()
	must(err)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	log, err := logger.New(logger.OptionsFrom(cfg))
	must(err)

	a, err := app.New(cfg, log)
	must(err)
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := os.Args[1]
	switch cmd {
	case "sync", "sync:if-due":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		force := fs.Bool("force", false, "run even when auto-sync is not due")
		_ = fs.Parse(os.Args[2:])
		must(cfg.RequireERP())

		// A plain "sync" is an explicit operator request.
		runForced := *force || cmd == "sync"
		report, err := a.Service.RunIfDue(ctx, runForced)
		must(err)
		if report == nil {
			fmt.Println("sync not due")
			return
		}
		printJSON(report)
		if !report.Success {
			os.Exit(2)
		}
	case "status":
		run, err := a.Service.Status(ctx)
		must(err)
		printJSON(run)
	case "history":
		entries, err := a.Service.History(ctx)
		must(err)
		printJSON(entries)
	case "integrity":
		report := a.Service.Integrity()
		printJSON(report)
		if report.Err() != nil {
			os.Exit(2)
		}
	case "reset-state":
		must(a.Service.Reset(ctx))
		fmt.Println("sync state reset")
	case "config":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		autoSync := fs.String("auto-sync", "", "true|false")
		interval := fs.Int("interval", 0, "auto-sync interval in minutes")
		_ = fs.Parse(os.Args[2:])

		var patch reconcile.SettingsPatch
		if v := strings.TrimSpace(*autoSync); v != "" {
			b, err := parseBool(v)
			must(err)
			patch.AutoSync = &b
		}
		if *interval != 0 {
			patch.IntervalMinutes = interval
		}
		settings, err := a.Service.UpdateSettings(ctx, patch)
		must(err)
		printJSON(settings)
	case "export:xlsx":
		fs := flag.NewFlagSet(cmd, flag.ExitOnError)
		out := fs.String("out", "", "output xlsx path")
		_ = fs.Parse(os.Args[2:])
		path := strings.TrimSpace(*out)
		if path == "" {
			path = filepath.Join(cfg.OutputDir, "catalog-"+time.Now().Format("20060102-150405")+".xlsx")
		}
		products, err := a.Service.ListCatalog()
		must(err)
		must(export.CatalogToXLSX(products, path))
		fmt.Printf("exported %d products to %s\n", len(products), path)
	default:
		usage()
		os.Exit(1)
	}
}

func parseBool(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean: %s", v)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	must(enc.Encode(v))
}

func usage() {
	fmt.Println("usage: catalogsync <command>")
	fmt.Println("commands:")
	fmt.Println("  sync")
	fmt.Println("  sync:if-due [--force]")
	fmt.Println("  status")
	fmt.Println("  history")
	fmt.Println("  integrity")
	fmt.Println("  reset-state")
	fmt.Println("  config [--auto-sync=true|false] [--interval=60]")
	fmt.Println("  export:xlsx [--out=./out/catalog.xlsx]")
}

func must(err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
