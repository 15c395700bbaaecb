package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/config"
	"github.com/coolbeans/amlegal/pkg/document"
	"github.com/coolbeans/amlegal/pkg/sanitize"
	"github.com/coolbeans/amlegal/pkg/store"
)

// Importer runs import sessions against one database.
type Importer struct {
	store  *store.Store
	config *config.Config
	logger  *slog.Logger
	filter  sanitize.ImageFilter
	replace bool
}

// Option customises an Importer.
type Option func(*Importer)

// WithImporterLogger sets the logger. Default: slog.Default().
func WithImporterLogger(logger *slog.Logger) Option {
	return func(imp *Importer) {
		if logger != nil {
			imp.logger = logger
		}
	}
}

// WithImageAcceptor replaces the blacklist filter for every session.
func WithImageAcceptor(filter sanitize.ImageFilter) Option {
	return func(imp *Importer) { imp.filter = filter }
}

// WithReplace makes every run delete the edition's laws before importing,
// so a directory can be imported again without duplicating them.
func WithReplace(replace bool) Option {
	return func(imp *Importer) { imp.replace = replace }
}

// New creates an Importer.
func New(st *store.Store, cfg *config.Config, opts ...Option) *Importer {
	if cfg == nil {
		cfg = config.Default()
	}
	imp := &Importer{
		store:  st,
		config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

// Labels returns the structural vocabulary: the configured labels, else
// the labels already stored followed by the leaf label, else DefaultLabels.
func (imp *Importer) Labels(ctx context.Context) ([]string, error) {
	if len(imp.config.StructureLabels) > 0 {
		return imp.config.StructureLabels, nil
	}

	labels, err := imp.store.StructureLabels(ctx)
	if err != nil {
		return nil, err
	}
	if len(labels) == 0 {
		return DefaultLabels, nil
	}
	return append(labels, code.ScopeSection), nil
}

// NewSession starts a session using the importer's vocabulary and logger.
func (imp *Importer) NewSession(ctx context.Context) (*Session, error) {
	labels, err := imp.Labels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read structure labels: %w", err)
	}
	return NewSession(imp.config, labels, WithLogger(imp.logger), WithImageFilter(imp.filter))
}

// Files lists the XML files of the import directory in lexical order,
// leaving out dotfiles and the ignore list.
func (imp *Importer) Files() ([]string, error) {
	entries, err := os.ReadDir(imp.config.Directory)
	if err != nil {
		return nil, fmt.Errorf("failed to read import directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !strings.EqualFold(filepath.Ext(name), ".xml") || imp.config.Ignored(name) {
			continue
		}
		files = append(files, filepath.Join(imp.config.Directory, name))
	}
	sort.Strings(files)
	return files, nil
}

// Run imports every file of the directory in one session, then rebuilds
// the permalinks. Problems with single files or records are recorded in
// the report; a cancelled context stops the run and the partial report is
// returned with the context error.
func (imp *Importer) Run(ctx context.Context) (*Report, error) {
	return imp.run(ctx, imp.replace)
}

func (imp *Importer) run(ctx context.Context, replace bool) (*Report, error) {
	started := time.Now()

	files, err := imp.Files()
	if err != nil {
		return nil, err
	}

	edition, err := imp.store.EnsureEdition(ctx, imp.config.Edition.Slug, imp.config.Edition.Name, imp.config.Edition.Current)
	if err != nil {
		return nil, err
	}

	session, err := imp.NewSession(ctx)
	if err != nil {
		return nil, err
	}

	if replace {
		cleared, err := imp.store.ClearLaws(ctx, edition.ID)
		if err != nil {
			return nil, err
		}
		session.log("cleared edition laws", SeverityInfo, "edition", edition.Slug, "laws", cleared)
	}

	runID, err := imp.store.BeginRun(ctx, edition.ID)
	if err != nil {
		return nil, err
	}

	report := &Report{
		RunID:     runID,
		SessionID: session.ID,
		Edition:   edition.Slug,
		Files:     len(files),
	}
	session.log("starting import", SeverityInfo, "run", runID, "files", len(files), "edition", edition.Slug)

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		imp.importFile(ctx, imp.store, session, edition.ID, path, report)
	}
	if err := ctx.Err(); err != nil {
		imp.finish(report, session, started)
		session.log("import cancelled", SeverityWarning, "laws", report.Laws)
		return report, err
	}

	deriver := NewPermalinkDeriver(imp.store, imp.config.LawLongURLs, imp.config.IncludeRepealed, session.logger)
	if report.Permalinks, err = deriver.Build(ctx); err != nil {
		session.log("failed to build permalinks", SeverityWarning, "error", err)
	}

	imp.finish(report, session, started)
	if err := imp.store.FinishRun(ctx, runID, report.Files, report.Laws, len(report.Skips)); err != nil {
		session.log("failed to record import run", SeverityWarning, "error", err)
	}
	session.log("import finished", SeverityNotable, "laws", report.Laws, "skipped", len(report.Skips))
	return report, nil
}

func (imp *Importer) finish(report *Report, session *Session, started time.Time) {
	report.Structures = session.structures
	report.Images = len(session.Images())
	report.Skips = session.Skipped()
	report.Duration = time.Since(started)
}

// importFile parses one file into the session and stores its laws. A law
// that fails to store is skipped and the next one is attempted.
func (imp *Importer) importFile(ctx context.Context, st Storage, session *Session, editionID int64, path string, report *Report) {
	name := filepath.Base(path)
	session.file = name
	defer func() { session.file = "" }()

	data, err := os.ReadFile(path)
	if err != nil {
		session.log("failed to read file", SeverityWarning, "error", err)
		session.skip(SkipDocument, err.Error())
		report.Skipped++
		return
	}

	doc, err := document.Parse(data)
	if err != nil {
		session.log("failed to parse file", SeverityWarning, "error", err)
		session.skip(SkipDocument, err.Error())
		report.Skipped++
		return
	}

	if !doc.HasSections() {
		session.log("no sections found", SeverityNotable)
		report.Skipped++
		return
	}

	session.log("importing", SeverityNotable)
	session.Parse(doc, name)
	session.file = name
	report.Imported++

	for _, law := range session.TakeLaws() {
		if err := session.Store(ctx, st, editionID, law); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			session.log("failed to store law", SeverityWarning, "section", law.SectionNumber, "error", err)
			session.skip(SkipPersistence, law.SectionNumber+": "+err.Error())
			continue
		}
		report.Laws++
	}
}

// BuildPermalinks rebuilds the permalink table without importing.
func (imp *Importer) BuildPermalinks(ctx context.Context) (int, error) {
	deriver := NewPermalinkDeriver(imp.store, imp.config.LawLongURLs, imp.config.IncludeRepealed, imp.logger)
	return deriver.Build(ctx)
}
