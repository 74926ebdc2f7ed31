package cli

import (
	"github.com/ppiankov/journeywatch/internal/config"
	"github.com/ppiankov/journeywatch/internal/decision"
	"github.com/ppiankov/journeywatch/internal/pipeline"
	"github.com/ppiankov/journeywatch/internal/risk"
	"github.com/ppiankov/journeywatch/internal/zone"
)

// core holds the read-only classification components shared by commands.
type core struct {
	zones    *zone.Classifier
	analyzer *risk.Analyzer
	engine   *decision.Engine
}

func loadCore(c *config.Config) (*core, error) {
	zs, err := zone.Load(c.ZonesPath)
	if err != nil {
		return nil, err
	}
	loc, err := c.Location()
	if err != nil {
		return nil, err
	}
	classifier := zone.NewClassifier(zs)
	return &core{
		zones: classifier,
		analyzer: risk.NewAnalyzer(classifier, risk.Options{
			Location:            loc,
			DedupLocationWeight: c.DedupLocationWeight,
		}),
		engine: decision.NewEngine(),
	}, nil
}

// dryRun returns a pipeline for unrecorded Assess calls only.
func (c *core) dryRun() *pipeline.Pipeline {
	return pipeline.New(c.analyzer, c.engine, nil, nil)
}
