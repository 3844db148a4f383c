// Package runner drives one full load run: it ensures the destination
// catalog schema exists, then extracts (unless running from a pre-staged
// directory) and stages each configured table in turn, isolating per-table
// failures so the run continues with the rest of the catalog.
package runner

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"ldp/internal/config"
	"ldp/internal/dbconn"
	"ldp/internal/extract"
	"ldp/internal/metrics"
	"ldp/internal/stage"
	"ldp/internal/stager"
)

// catalogSchema is the destination schema for published and loading tables.
// ldp_history and ldp_local are reserved for a merge/history stage outside
// this core's scope.
const catalogSchema = "ldp_catalog"

// TableOutcome records the result of staging one table.
type TableOutcome struct {
	TableName string
	Err       error
}

// Runner drives one run over Config.Tables, in catalog order.
type Runner struct {
	Config config.RunConfig
	DB     dbconn.DB
	Flavor dbconn.Flavor

	// Extractor fetches page files before staging. Leave nil when
	// Config.Source.FromDir is set, so Run skips straight to staging
	// pre-staged page files in Config.Source.LoadDir.
	Extractor *extract.Extractor
}

// Run ensures the catalog schema exists, then stages every table in
// Config.Tables. Once the schema is ready it returns one TableOutcome per
// table in Config.Tables; a schema-preparation failure is a run-level error
// and aborts before any table is attempted. After a context cancellation,
// each table not yet started is not attempted and its outcome carries the
// context's error.
func (r *Runner) Run(ctx context.Context) ([]TableOutcome, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.ensureSchema(gctx)
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("runner: preparing schema: %w", err)
	}

	outcomes := make([]TableOutcome, 0, len(r.Config.Tables))
	for _, table := range r.Config.Tables {
		if err := ctx.Err(); err != nil {
			outcomes = append(outcomes, TableOutcome{TableName: table.TableName, Err: err})
			continue
		}
		outcomes = append(outcomes, r.runTable(ctx, table))
	}
	return outcomes, nil
}

func (r *Runner) ensureSchema(ctx context.Context) error {
	tx, err := r.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning schema transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	sql := fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", r.Flavor.QuoteIdent(catalogSchema))
	if err := tx.Exec(ctx, sql); err != nil {
		return fmt.Errorf("creating schema %s: %w", catalogSchema, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing schema creation: %w", err)
	}
	committed = true
	return nil
}

func (r *Runner) runTable(ctx context.Context, table config.TableConfig) TableOutcome {
	start := time.Now()
	loadDir := r.Config.Source.LoadDir

	if r.Extractor != nil {
		n, err := r.Extractor.ExtractTable(ctx, loadDir, table.TableName, table.SourcePath)
		if err != nil {
			log.Printf("runner: job=%s table=%s stage=extract status=failed error=%v", r.Config.Job, table.TableName, err)
			metrics.RecordStep(r.Config.Job, "extract:"+table.TableName, err, time.Since(start))
			return TableOutcome{TableName: table.TableName, Err: err}
		}
		log.Printf("runner: job=%s table=%s stage=extract status=ok pages=%d", r.Config.Job, table.TableName, n)
	}

	st := &stager.TableStager{
		DB:      r.DB,
		Flavor:  r.Flavor,
		Schema:  catalogSchema,
		LoadDir: loadDir,
		FromDir: r.Config.Source.FromDir,
		Roles:   r.Config.Storage.Roles,
		Job:     r.Config.Job,
	}
	spec := &stage.TableSpec{
		TableName:  table.TableName,
		ModuleName: table.ModuleName,
		SourcePath: table.SourcePath,
	}

	err := st.StageTable(ctx, spec)
	metrics.RecordStep(r.Config.Job, "stage:"+table.TableName, err, time.Since(start))
	if err != nil {
		log.Printf("runner: job=%s table=%s stage=publish status=failed error=%v", r.Config.Job, table.TableName, err)
		return TableOutcome{TableName: table.TableName, Err: err}
	}

	metrics.RecordRow(r.Config.Job, "published", 1)
	log.Printf("runner: job=%s table=%s stage=publish status=ok duration=%s", r.Config.Job, table.TableName, time.Since(start))
	return TableOutcome{TableName: table.TableName}
}
