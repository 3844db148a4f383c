// Package stager implements the stage-and-publish coordinator: it drives
// pass 1 and pass 2 of internal/stage over a table's page files, creates and
// indexes the loading table via internal/dbconn, batches inserts via
// internal/loader, and publishes the result, all within one per-table
// transaction that rolls back on any error.
package stager

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ldp/internal/anonymize"
	"ldp/internal/datasource"
	"ldp/internal/dbconn"
	"ldp/internal/ddl"
	"ldp/internal/ident"
	"ldp/internal/loader"
	"ldp/internal/stage"
)

// TableStager coordinates one table's load. Nothing on it is shared across
// tables: a run constructs one TableStager value (or reuses one with a fresh
// per-call Counts map) per table.
type TableStager struct {
	// DB opens per-table transactions.
	DB dbconn.DB
	// Flavor controls dialect-specific DDL.
	Flavor dbconn.Flavor
	// Schema is the destination schema (e.g. "ldp_catalog").
	Schema string
	// LoadDir holds "<table>_<page>.json" and "<table>_count.txt" files.
	LoadDir string
	// FromDir additionally consumes "<table>_test.json" when present,
	// mirroring the CLI's --sourcedir load-from-directory mode.
	FromDir bool
	// Roles are granted SELECT on both the loading and published table.
	Roles []string
	// Job names the run, used only for progress logging.
	Job string
	// Anonymize redacts personal-data fields before they are counted or
	// written. Defaults to anonymize.None if left nil.
	Anonymize anonymize.Predicate
}

// StageTable runs the full protocol for one table: pass 1, create, pass 2,
// index, publish, commit. On any error the table's transaction is rolled
// back and the error is returned; the caller (internal/runner) is expected
// to log it, mark the table failed, and continue with the rest of the run.
func (s *TableStager) StageTable(ctx context.Context, spec *stage.TableSpec) error {
	pred := s.Anonymize
	if pred == nil {
		pred = anonymize.None
	}

	pageCount, err := readPageCount(s.LoadDir, spec.TableName)
	if err != nil {
		return err
	}
	log.Printf("stager: job=%s table=%s pages=%d stage=analyze", s.Job, spec.TableName, pageCount)

	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("stager: table=%s beginning transaction: %w", spec.TableName, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	counts := map[string]*stage.Counts{}
	err = s.forEachPage(ctx, spec.TableName, pageCount, func(rec map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		anonymize.Redact(rec, pred)
		stage.ObservePass1(rec, counts)
		return nil
	})
	if err != nil {
		return fmt.Errorf("stager: table=%s pass 1: %w", spec.TableName, err)
	}

	spec.Columns = stage.FinalizeColumns(counts)

	if err := s.createLoadingTable(ctx, tx, spec); err != nil {
		return fmt.Errorf("stager: table=%s creating loading table: %w", spec.TableName, err)
	}

	log.Printf("stager: job=%s table=%s stage=load", s.Job, spec.TableName)
	loadingFQN := dbconn.QualifiedName(s.Schema, ident.LoadingTableName(spec.TableName))
	batch := loader.New(tx, loadingFQN, s.Job)
	err = s.forEachPage(ctx, spec.TableName, pageCount, func(rec map[string]any) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		anonymize.Redact(rec, pred)
		tuple, _ := stage.RenderTuple(spec, rec, s.Flavor)
		return batch.Append(ctx, tuple)
	})
	if err != nil {
		return fmt.Errorf("stager: table=%s pass 2: %w", spec.TableName, err)
	}
	if err := batch.Flush(ctx); err != nil {
		return fmt.Errorf("stager: table=%s final flush: %w", spec.TableName, err)
	}

	if err := s.indexLoadingTable(ctx, tx, spec); err != nil {
		return fmt.Errorf("stager: table=%s indexing: %w", spec.TableName, err)
	}

	if err := s.publish(ctx, tx, spec.TableName); err != nil {
		return fmt.Errorf("stager: table=%s publishing: %w", spec.TableName, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("stager: table=%s commit: %w", spec.TableName, err)
	}
	committed = true

	log.Printf("stager: job=%s table=%s published rows=%d", s.Job, spec.TableName, batch.TotalTuples())
	return nil
}

// forEachPage streams pages 0..pageCount-1 in order, then "<table>_test.json"
// when s.FromDir is set and the file exists. Every page is opened through a
// datasource.Source so staging is agnostic to where page files came from.
func (s *TableStager) forEachPage(ctx context.Context, table string, pageCount int, handle stage.RecordHandler) error {
	for page := 0; page < pageCount; page++ {
		path := filepath.Join(s.LoadDir, fmt.Sprintf("%s_%d.json", table, page))
		if err := scanPageFile(ctx, datasource.FileSource{Path: path}, handle); err != nil {
			return err
		}
	}
	if s.FromDir {
		testPath := filepath.Join(s.LoadDir, table+"_test.json")
		if _, err := os.Stat(testPath); err == nil {
			if err := scanPageFile(ctx, datasource.FileSource{Path: testPath}, handle); err != nil {
				return err
			}
		}
	}
	return nil
}

func scanPageFile(ctx context.Context, src datasource.Source, handle stage.RecordHandler) error {
	r, err := src.Open(ctx)
	if err != nil {
		return fmt.Errorf("opening page: %w", err)
	}
	defer r.Close()
	if err := stage.NewPageScanner(r).Scan(handle); err != nil {
		return fmt.Errorf("scanning page: %w", err)
	}
	return nil
}

// readPageCount reads "<loadDir>/<table>_count.txt". A missing file is
// treated as zero pages with a logged warning, per the stager's contract.
func readPageCount(loadDir, table string) (int, error) {
	path := filepath.Join(loadDir, table+"_count.txt")
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Printf("stager: warning table=%s reason=missing-count-file action=treat-as-zero-pages path=%s", table, path)
			return 0, nil
		}
		return 0, fmt.Errorf("stager: reading page count for %s: %w", table, err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("stager: malformed page count file %s: %q", path, string(b))
	}
	return n, nil
}

func (s *TableStager) createLoadingTable(ctx context.Context, tx dbconn.Tx, spec *stage.TableSpec) error {
	sql, err := buildCreateTableSQL(s.Schema, spec, s.Flavor)
	if err != nil {
		return err
	}
	if err := tx.Exec(ctx, sql); err != nil {
		return err
	}

	loadingFQN := dbconn.QualifiedName(s.Schema, ident.LoadingTableName(spec.TableName))

	if spec.ModuleName != "mod-agreements" {
		comment := fmt.Sprintf("COMMENT ON TABLE %s IS %s;", loadingFQN,
			s.Flavor.EncodeStringLiteral(fmt.Sprintf("%s in %s", spec.SourcePath, spec.ModuleName)))
		if err := tx.Exec(ctx, comment); err != nil {
			return err
		}
	}

	for _, role := range s.Roles {
		if err := tx.Exec(ctx, fmt.Sprintf("GRANT SELECT ON %s TO %s;", loadingFQN, role)); err != nil {
			return err
		}
	}
	return nil
}

// buildCreateTableSQL renders the loading table's CREATE TABLE statement:
// id VARCHAR(36) NOT NULL, the inferred columns, data <flavor JSON type>,
// tenant_id SMALLINT NOT NULL, followed by any flavor-specific key clause.
// The primary key is added later by indexLoadingTable (ALTER TABLE), not
// here, matching the two-step create-then-index protocol.
func buildCreateTableSQL(schema string, spec *stage.TableSpec, flavor dbconn.Flavor) (string, error) {
	cols := []ddl.ColumnDef{
		{Name: flavor.QuoteIdent("id"), SQLType: "VARCHAR(36)", Nullable: false},
	}
	for _, c := range spec.Columns {
		if c.ColumnName == "id" {
			continue
		}
		cols = append(cols, ddl.ColumnDef{
			Name:     flavor.QuoteIdent(c.ColumnName),
			SQLType:  c.ColumnType.SQL(),
			Nullable: true,
		})
	}
	cols = append(cols,
		ddl.ColumnDef{Name: flavor.QuoteIdent("data"), SQLType: flavor.JSONType(), Nullable: true},
		ddl.ColumnDef{Name: flavor.QuoteIdent("tenant_id"), SQLType: "SMALLINT", Nullable: false},
	)

	table := ddl.TableDef{
		FQN:     dbconn.QualifiedName(schema, ident.LoadingTableName(spec.TableName)),
		Columns: cols,
	}
	sql, err := ddl.BuildCreateTableSQL(table)
	if err != nil {
		return "", err
	}

	if clause := flavor.TableClause("id"); clause != "" {
		sql = strings.TrimSuffix(sql, ");") + ")" + clause + ";"
	}
	return sql, nil
}

// indexLoadingTable adds PRIMARY KEY (id) unconditionally, then — only when
// the flavor supports secondary indexes (PostgreSQL, not Redshift) — a
// single-column B-tree index on every non-id, non-data column.
func (s *TableStager) indexLoadingTable(ctx context.Context, tx dbconn.Tx, spec *stage.TableSpec) error {
	loadingFQN := dbconn.QualifiedName(s.Schema, ident.LoadingTableName(spec.TableName))

	pk := fmt.Sprintf("ALTER TABLE %s ADD PRIMARY KEY (%s);", loadingFQN, s.Flavor.QuoteIdent("id"))
	if err := tx.Exec(ctx, pk); err != nil {
		return err
	}

	if !s.Flavor.SupportsSecondaryIndexes() {
		return nil
	}
	for _, col := range spec.Columns {
		if col.ColumnName == "id" || col.ColumnName == "data" {
			continue
		}
		sql := fmt.Sprintf("CREATE INDEX ON %s (%s);", loadingFQN, s.Flavor.QuoteIdent(col.ColumnName))
		if err := tx.Exec(ctx, sql); err != nil {
			return err
		}
	}
	return nil
}

// publish drops the previously published table (if any) and renames the
// loading table into its place, then re-grants SELECT to the configured
// roles on the newly published name.
func (s *TableStager) publish(ctx context.Context, tx dbconn.Tx, tableName string) error {
	publishedFQN := dbconn.QualifiedName(s.Schema, tableName)
	loadingFQN := dbconn.QualifiedName(s.Schema, ident.LoadingTableName(tableName))

	if err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s;", publishedFQN)); err != nil {
		return err
	}
	if err := tx.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s;", loadingFQN, s.Flavor.QuoteIdent(tableName))); err != nil {
		return err
	}
	for _, role := range s.Roles {
		if err := tx.Exec(ctx, fmt.Sprintf("GRANT SELECT ON %s TO %s;", publishedFQN, role)); err != nil {
			return err
		}
	}
	return nil
}
