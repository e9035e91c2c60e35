package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/kalambet/attune/internal/aggregate"
	"github.com/kalambet/attune/internal/api"
	"github.com/kalambet/attune/internal/calendar"
	"github.com/kalambet/attune/internal/config"
	"github.com/kalambet/attune/internal/docs"
	"github.com/kalambet/attune/internal/googleauth"
	"github.com/kalambet/attune/internal/identity"
	"github.com/kalambet/attune/internal/ocr"
	"github.com/kalambet/attune/internal/pdftext"
	"github.com/kalambet/attune/internal/reflections"
	"github.com/kalambet/attune/internal/storage"
	"github.com/kalambet/attune/internal/syllabus"
	"github.com/kalambet/attune/internal/weeklyemail"
)

// app is the fully wired service plus the resources it must release.
type app struct {
	deps    api.Deps
	store   *storage.Store
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("closing resource", "error", err)
		}
	}
}

// newRecognizer returns the OCR engine selected by cfg.OCR.Engine. The
// returned close func is never nil.
func newRecognizer(ctx context.Context, cfg config.OCRConfig) (pdftext.Recognizer, func() error, error) {
	switch cfg.Engine {
	case config.EngineVision:
		v, err := ocr.NewVision(ctx)
		if err != nil {
			return nil, nil, err
		}
		return v, v.Close, nil
	default:
		return ocr.Tesseract{Path: cfg.TesseractPath, Timeout: cfg.RasterTimeout}, func() error { return nil }, nil
	}
}

// newExtractor builds the text-layer then OCR PDF pipeline.
func newExtractor(cfg config.OCRConfig, rec pdftext.Recognizer, logger *slog.Logger) *pdftext.Extractor {
	raster := ocr.Poppler{Path: cfg.PdftoppmPath, DPI: cfg.DPI, Timeout: cfg.RasterTimeout}
	return pdftext.New(pdftext.PDFLayer{}, raster, rec, cfg.MaxPages, logger)
}

// newResolver builds a document resolver. cache may be nil.
func newResolver(cfg config.Config, pdf docs.PDFExtractor, cache docs.Cache, logger *slog.Logger) *docs.Resolver {
	opts := docs.Options{
		HTTPClient: &http.Client{Timeout: cfg.Documents.Timeout},
		PDF:        pdf,
		Cache:      cache,
		CacheTTL:   cfg.Documents.CacheTTL,
		Logger:     logger,
	}
	return docs.NewResolver(opts)
}

func newLibrary(cfg config.Config, aliases []syllabus.Alias) *syllabus.Library {
	return syllabus.NewLibrary(cfg.Storage.SyllabiDir, aliases, syllabus.NewParser(cfg.Syllabus.EmailDomain))
}

// buildApp wires every component from cfg.
func buildApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	a := &app{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	reg, err := identity.LoadRegistry(cfg.Storage.RegistryPath)
	if err != nil {
		return nil, err
	}
	logger.Info("identity registry loaded", "path", cfg.Storage.RegistryPath, "students", reg.Names())

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, fmt.Errorf("opening storage: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	rec, closeRec, err := newRecognizer(ctx, cfg.OCR)
	if err != nil {
		return nil, fmt.Errorf("initializing OCR: %w", err)
	}
	a.closers = append(a.closers, closeRec)
	extractor := newExtractor(cfg.OCR, rec, logger)
	resolver := newResolver(cfg, extractor, store, logger)

	weekly := weeklyemail.NewStore(cfg.Storage.WeeklyEmailPath)

	var cal aggregate.Calendar
	var refl api.Reflections
	if cfg.Google.Configured() {
		creds := googleauth.Credentials{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RefreshToken: cfg.Google.RefreshToken,
		}
		opts := creds.ClientOptions(ctx, cfg.Google.Timeout)

		calClient, err := calendar.NewClient(ctx, opts...)
		if err != nil {
			return nil, err
		}
		cal = calClient

		drive, err := reflections.NewDrive(ctx, opts...)
		if err != nil {
			return nil, err
		}
		refl = reflections.NewStore(drive, reflections.Options{
			Folder:  cfg.Drive.FolderName,
			File:    cfg.Drive.ReflectionFile,
			Authors: reg.ReflectionAuthors,
			Logger:  logger,
		})
	} else {
		logger.Warn("google credentials not configured; calendar events and reflections are disabled")
	}

	agg := aggregate.New(aggregate.Options{
		Canvas:       aggregate.CanvasFactory(cfg.Canvas.BaseURL, &http.Client{Timeout: cfg.Canvas.Timeout}),
		Calendar:     cal,
		WeeklyEmails: weekly,
		Documents:    resolver,
		PDF:          extractor,
		OCR:          rec,
		Logger:       logger,
	})

	a.deps = api.Deps{
		Registry:           reg,
		Aggregator:         agg,
		Documents:          resolver,
		Syllabi:            newLibrary(cfg, reg.SyllabusAliases),
		Reflections:        refl,
		WeeklyEmails:       weekly,
		APIKey:             cfg.Server.APIKey,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		Development:        cfg.Server.Development(),
		Logger:             logger,
	}
	ok = true
	return a, nil
}

// sweepDocumentCache drops expired cache rows every interval until ctx ends.
func sweepDocumentCache(ctx context.Context, store *storage.Store, ttl, interval time.Duration, logger *slog.Logger) {
	if ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.PurgeDocuments(ctx, now.Add(-ttl))
			if err != nil {
				if !errors.Is(err, context.Canceled) {
					logger.Warn("purging document cache", "error", err)
				}
				continue
			}
			if n > 0 {
				logger.Debug("purged document cache", "removed", n)
			}
		}
	}
}

func newLogger(level string) *slog.Logger {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}
