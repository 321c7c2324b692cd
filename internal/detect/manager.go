package detect

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"stock-radar/internal/config"
	"stock-radar/internal/models"
	"stock-radar/internal/provider"
)

// SweepStats summarizes one detection sweep.
type SweepStats struct {
	Symbols    int
	Detected   int
	Failures   int
	ByDetector map[string]int
}

// Manager runs a fixed set of detectors over a symbol universe. Detectors
// run in registration order for a given symbol; one detector failing is
// counted and logged, never propagated.
type Manager struct {
	detectors     []Detector
	maxConcurrent int
	logger        zerolog.Logger
}

// NewManager creates an empty manager.
func NewManager(maxConcurrent int, logger zerolog.Logger) *Manager {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Manager{
		maxConcurrent: maxConcurrent,
		logger:        logger.With().Str("component", "detect").Logger(),
	}
}

// Register appends a detector. Registration order is the execution order
// within a symbol.
func (m *Manager) Register(d Detector) {
	m.detectors = append(m.detectors, d)
}

// Detectors returns the registered detectors in registration order.
func (m *Manager) Detectors() []Detector {
	return m.detectors
}

// NewDefaultManager wires the five standard detectors in their canonical
// order: trading, company, industry, sentiment, macro.
func NewDefaultManager(cfg *config.Config, data provider.MarketData, logger zerolog.Logger) *Manager {
	m := NewManager(cfg.Scheduler.MaxConcurrent, logger)
	m.Register(NewTradingDetector(cfg.Detect.Trading, cfg.Provider.LookbackDays, data, logger))
	m.Register(NewCompanyDetector(cfg.Detect.Company, data, logger))
	m.Register(NewIndustryDetector(cfg.Detect.Industry, data, logger))
	m.Register(NewSentimentDetector(cfg.Detect.Sentiment, data, logger))
	m.Register(NewMacroDetector(cfg.Detect.Macro, data, logger))
	return m
}

// DetectSymbol runs every symbol-scoped detector against one symbol,
// sequentially in registration order.
func (m *Manager) DetectSymbol(ctx context.Context, symbol string) ([]models.FinancialEvent, int) {
	var events []models.FinancialEvent
	failures := 0
	for _, d := range m.detectors {
		if d.Scope() != ScopeSymbol {
			continue
		}
		detected, err := d.Detect(ctx, symbol)
		if err != nil {
			m.logger.Warn().Err(err).Str("detector", d.Name()).Str("symbol", symbol).Msg("detector failed")
			failures++
			continue
		}
		events = append(events, detected...)
	}
	return events, failures
}

// Sweep runs all detectors over the universe: symbol-scoped detectors fan
// out per symbol with bounded concurrency, market-scoped detectors run once
// each. The returned slice preserves no particular order; deduplication is
// the store's job.
func (m *Manager) Sweep(ctx context.Context, universe []string) ([]models.FinancialEvent, SweepStats) {
	stats := SweepStats{
		Symbols:    len(universe),
		ByDetector: make(map[string]int, len(m.detectors)),
	}

	var mu sync.Mutex
	var all []models.FinancialEvent

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.maxConcurrent)

	for _, symbol := range universe {
		symbol := symbol
		g.Go(func() error {
			for _, d := range m.detectors {
				if d.Scope() != ScopeSymbol {
					continue
				}
				detected, err := d.Detect(gctx, symbol)
				mu.Lock()
				if err != nil {
					stats.Failures++
					m.logger.Warn().Err(err).Str("detector", d.Name()).Str("symbol", symbol).Msg("detector failed")
				} else {
					all = append(all, detected...)
					stats.ByDetector[d.Name()] += len(detected)
				}
				mu.Unlock()
			}
			return nil
		})
	}

	for _, d := range m.detectors {
		if d.Scope() != ScopeMarket {
			continue
		}
		d := d
		g.Go(func() error {
			detected, err := d.Detect(gctx, "")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failures++
				m.logger.Warn().Err(err).Str("detector", d.Name()).Msg("detector failed")
				return nil
			}
			all = append(all, detected...)
			stats.ByDetector[d.Name()] += len(detected)
			return nil
		})
	}

	_ = g.Wait() // workers never return errors, failures are counted instead

	stats.Detected = len(all)
	return all, stats
}
