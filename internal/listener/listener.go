package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"catalogsync/internal"
	"catalogsync/internal/config"
	"catalogsync/internal/export"
)

// SyncService is what the poller needs from reconcile.Service.
type SyncService interface {
	Poke(ctx context.Context)
	LastSuccess(ctx context.Context) (*time.Time, error)
	ListCatalog() ([]internal.Product, error)
}

// Service polls the auto-sync schedule so a due run starts even when no
// catalog reads arrive. With auto-export on, each newly committed catalog is
// also written to an xlsx snapshot.
type Service struct {
	svc        SyncService
	interval   time.Duration
	autoExport bool
	outputDir  string
	log        *zap.Logger

	exported time.Time
}

func NewService(svc SyncService, cfg config.Config, log *zap.Logger) *Service {
	return &Service{
		svc:        svc,
		interval:   cfg.PollInterval(),
		autoExport: cfg.AutoExportXLSX,
		outputDir:  filepath.Join(cfg.OutputDir, "snapshots"),
		log:        log.Named("listener"),
	}
}

func (s *Service) Run(ctx context.Context) error {
	s.log.Info("auto-sync poller started", zap.Duration("interval", s.interval))
	for {
		if err := s.runCycle(ctx); err != nil {
			s.log.Warn("poller cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.interval):
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	s.svc.Poke(ctx)
	if !s.autoExport {
		return nil
	}
	return s.exportCommitted(ctx)
}

// exportCommitted writes a snapshot once per successful commit.
func (s *Service) exportCommitted(ctx context.Context) error {
	last, err := s.svc.LastSuccess(ctx)
	if err != nil {
		return err
	}
	if last == nil || !last.After(s.exported) {
		return nil
	}

	products, err := s.svc.ListCatalog()
	if err != nil {
		return err
	}
	path := filepath.Join(s.outputDir, snapshotName(*last))
	if err := export.CatalogToXLSX(products, path); err != nil {
		return fmt.Errorf("export snapshot: %w", err)
	}
	s.exported = *last
	s.log.Info("catalog snapshot exported", zap.String("path", path), zap.Int("products", len(products)))
	return nil
}

func snapshotName(at time.Time) string {
	return "catalog_" + at.UTC().Format("20060102T150405Z") + ".xlsx"
}
