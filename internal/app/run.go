package app

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/pipegrid/internal/ctxlog"
	"github.com/vk/pipegrid/internal/hclpipe"
	"github.com/vk/pipegrid/internal/pipeline"
	"github.com/vk/pipegrid/internal/progress"
	"github.com/vk/pipegrid/internal/token"
)

// Run executes the main application logic based on the provided configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	files, err := findPipelineFiles(a.config.PipelinePath)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		a.logger.Warn("No pipeline files found, nothing to do.", "path", a.config.PipelinePath)
		return nil
	}
	a.logger.Debug("Pipeline files located.", "count", len(files))

	for _, file := range files {
		parsed, err := hclpipe.ParseFile(file)
		if err != nil {
			return err
		}
		for _, def := range parsed.Pipelines {
			if err := a.runPipeline(ctx, def); err != nil {
				return fmt.Errorf("pipeline %q: %w", def.Name, err)
			}
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// runPipeline builds, plans, and executes one pipeline definition.
func (a *App) runPipeline(ctx context.Context, def *hclpipe.PipelineDef) error {
	logger := ctxlog.FromContext(ctx).With("pipeline", def.Name)
	ctx = ctxlog.WithLogger(ctx, logger)

	built, err := hclpipe.Build(ctx, def, a.registry)
	if err != nil {
		return err
	}

	var metricsSet *metrics.Set
	factory := func(phaseName string) progress.Indicator {
		return progress.NewLog(logger, phaseName)
	}
	if a.config.Metrics {
		metricsSet = metrics.NewSet()
		factory = func(phaseName string) progress.Indicator {
			return progress.NewMetrics(metricsSet, phaseName)
		}
	}

	p, err := pipeline.New(pipeline.Options{
		MemoryBudget: a.config.MemoryBudget,
		Indicator:    factory,
	}, built...)
	if err != nil {
		return err
	}
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("Pipeline teardown reported errors.", "error", err)
		}
	}()

	if a.config.PlotOnly {
		return p.Plot(a.outW, false)
	}

	logger.Info("🚀 Starting pipeline execution...")
	if err := p.Run(ctx); err != nil {
		return err
	}
	logger.Info("🏁 Pipeline execution finished.")

	a.reportResults(logger, p)
	if metricsSet != nil {
		metricsSet.WritePrometheus(a.outW)
	}
	return nil
}

// reportResults logs the sizes of every published result datastructure.
func (a *App) reportResults(logger *slog.Logger, p *pipeline.Pipeline) {
	for _, name := range p.Map().DatastructureNames() {
		if !strings.HasPrefix(name, "result.") {
			continue
		}
		items, err := token.DatastructureAs[[]cty.Value](p.Map(), name)
		if err != nil {
			continue
		}
		logger.Info("Result collected.", "datastructure", name, "items", len(items))
	}
}

// findPipelineFiles resolves a path to the .hcl files beneath it.
func findPipelineFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("resolving pipeline path: %w", err)
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".hcl") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning pipeline directory: %w", err)
	}
	return files, nil
}
