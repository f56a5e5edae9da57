package services

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/logs2metrics/l2m/internal/domain/analysis"
	"github.com/logs2metrics/l2m/internal/domain/engine"
	"github.com/logs2metrics/l2m/internal/pkg/logger"
)

// mappingConcurrency bounds parallel mapping lookups for one request
const mappingConcurrency = 4

// AnalysisService implements analysis.Service
type AnalysisService struct {
	scorer   analysis.Scorer
	engine   engine.Client
	mappings singleflight.Group
	logger   *logger.Logger
}

// NewAnalysisService creates a panel analysis service
func NewAnalysisService(scorer analysis.Scorer, client engine.Client, log *logger.Logger) *AnalysisService {
	return &AnalysisService{
		scorer: scorer,
		engine: client,
		logger: log.WithComponent("analysis"),
	}
}

var _ analysis.Service = (*AnalysisService)(nil)

// AnalyzePanels scores every panel. Field types are resolved once per index
// pattern; a pattern whose mapping cannot be read scores as unverified.
func (s *AnalysisService) AnalyzePanels(ctx context.Context, req analysis.Request) ([]analysis.PanelResult, error) {
	types, err := s.resolveFieldTypes(ctx, req.Panels)
	if err != nil {
		return nil, err
	}

	results := make([]analysis.PanelResult, 0, len(req.Panels))
	for _, panel := range req.Panels {
		score := s.scorer.ScorePanel(panel, analysis.ScoreOptions{
			FieldTypes:        types[panel.IndexPattern],
			TimeFrom:          req.TimeFrom,
			RefreshIntervalMs: req.RefreshIntervalMs,
		})
		results = append(results, analysis.PanelResult{Panel: panel, Score: score})
	}
	return results, nil
}

func (s *AnalysisService) resolveFieldTypes(ctx context.Context, panels []analysis.PanelAnalysis) (map[string]map[string]string, error) {
	var (
		mu    sync.Mutex
		types = make(map[string]map[string]string)
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(mappingConcurrency)

	seen := make(map[string]bool)
	for _, p := range panels {
		pattern := p.IndexPattern
		if pattern == "" || seen[pattern] {
			continue
		}
		seen[pattern] = true

		g.Go(func() error {
			ft := s.fieldTypes(gctx, pattern)
			mu.Lock()
			types[pattern] = ft
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return types, ctx.Err()
}

// fieldTypes shares one in-flight mapping lookup between concurrent callers
func (s *AnalysisService) fieldTypes(ctx context.Context, pattern string) map[string]string {
	v, err, _ := s.mappings.Do(pattern, func() (interface{}, error) {
		fields, err := s.engine.GetMapping(ctx, pattern)
		if err != nil {
			return nil, err
		}
		return engine.FieldTypes(fields), nil
	})
	if err != nil {
		s.logger.With("index_pattern", pattern).WarnWithErr(err, "Could not resolve field types")
		return map[string]string{}
	}
	return v.(map[string]string)
}
