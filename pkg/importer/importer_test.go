package importer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/config"
	"github.com/coolbeans/amlegal/pkg/sanitize"
	"github.com/coolbeans/amlegal/pkg/store"
)

const chapterOne = `<?xml version="1.0" encoding="UTF-8"?>
<DOCUMENT>
<REFERENCE><TITLE>Chapter 1</TITLE></REFERENCE>
<LEVEL style-name="Chapter">
  <RECORD><HEADING>CHAPTER 1: GENERAL PROVISIONS</HEADING></RECORD>
  <LEVEL style-name="TOC"><RECORD><HEADING>Contents</HEADING></RECORD><LEVEL/></LEVEL>
  <LEVEL style-name="Normal Level">
    <RECORD><PARA style-name="History">Ord. 1990-4</PARA></RECORD>
  </LEVEL>
  <LEVEL style-name="Section">
    <RECORD><HEADING>SEC. 1-1. DEFINITIONS.</HEADING></RECORD>
    <LEVEL style-name="Normal Level">
      <RECORD><PARA style-name="Normal">For purposes of this chapter, the following words have the meanings given.</PARA></RECORD>
      <RECORD><PARA style-name="Normal">(a) "Person" means any individual or entity. See 1-2 and 1-2.</PARA></RECORD>
      <RECORD><PARA style-name="History">2010, c. 402, § 1-15.1</PARA></RECORD>
    </LEVEL>
  </LEVEL>
  <LEVEL style-name="Section">
    <RECORD><HEADING>SEC. 1-2. NOISE.</HEADING></RECORD>
    <LEVEL style-name="Normal Level">
      <RECORD><PARA style-name="Normal">No person shall make noise. <PICTURE id="seal" width="10"/><PICTURE id="map"/></PARA></RECORD>
    </LEVEL>
  </LEVEL>
</LEVEL>
</DOCUMENT>`

const appendices = `<?xml version="1.0" encoding="UTF-8"?>
<DOCUMENT>
<REFERENCE><TITLE>Appendices</TITLE></REFERENCE>
<LEVEL>
  <RECORD><HEADING>APPENDICES: Fee Schedule</HEADING></RECORD>
  <LEVEL><RECORD><HEADING>Contents</HEADING></RECORD><LEVEL/></LEVEL>
  <LEVEL>
    <RECORD><HEADING>APPENDIX A. BUILDING FEES</HEADING></RECORD>
    <LEVEL style-name="Normal Level"><RECORD><PARA style-name="Normal">Permit fee: $40.</PARA></RECORD></LEVEL>
  </LEVEL>
  <LEVEL>
    <RECORD><HEADING>SEC. 9-9. OLD FEES.</HEADING></RECORD>
    <LEVEL style-name="Normal Level"><RECORD><PARA style-name="Section-Deleted">Repealed by Ord. 5.</PARA></RECORD></LEVEL>
  </LEVEL>
</LEVEL>
</DOCUMENT>`

func writeImportDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"0-0-0-1.xml": chapterOne,
		".hidden.xml": chapterOne,
		"notes.txt":   "not an export",
		"1-1-1-1.xml": chapterOne,
		"1-1-1-2.xml": "this is not xml",
		"1-1-1-3.xml": `<DOCUMENT><LEVEL><RECORD><HEADING>CHAPTER 3: X</HEADING></RECORD><LEVEL/></LEVEL></DOCUMENT>`,
		"2-1-1-1.xml": appendices,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteFile failed: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "archive.xml"), 0o755); err != nil {
		t.Fatalf("Mkdir failed: %v", err)
	}
	return dir
}

func newTestImporter(t *testing.T, dir string) (*Importer, *store.Store) {
	t.Helper()
	cfg := config.Default()
	cfg.Directory = dir
	cfg.ImageBlacklist = []string{"seal"}

	st := store.OpenMemory(t)
	return New(st, cfg, WithImporterLogger(discardLogger())), st
}

func TestFiles(t *testing.T) {
	dir := writeImportDir(t)
	imp, _ := newTestImporter(t, dir)

	files, err := imp.Files()
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}

	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	want := "1-1-1-1.xml,1-1-1-2.xml,1-1-1-3.xml,2-1-1-1.xml"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("files = %s, want %s", got, want)
	}
}

func TestFiles_MissingDirectory(t *testing.T) {
	imp, _ := newTestImporter(t, filepath.Join(t.TempDir(), "missing"))
	if _, err := imp.Files(); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestRun(t *testing.T) {
	ctx := context.Background()
	imp, st := newTestImporter(t, writeImportDir(t))

	report, err := imp.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Files != 4 || report.Imported != 2 || report.Skipped != 2 {
		t.Errorf("files %d imported %d skipped %d, want 4 2 2", report.Files, report.Imported, report.Skipped)
	}
	if report.Laws != 4 || report.Structures != 2 {
		t.Errorf("laws %d structures %d, want 4 2", report.Laws, report.Structures)
	}
	if report.Images != 1 {
		t.Errorf("images = %d, want 1 after the blacklist", report.Images)
	}
	if report.CountSkips(SkipDocument) != 1 {
		t.Errorf("expected one malformed document skip, got %+v", report.Skips)
	}
	if report.Permalinks != 5 {
		t.Errorf("permalinks = %d, want 5", report.Permalinks)
	}

	appendix, err := st.FindStructure(ctx, AppendixIdentifier, 1, 0)
	if err != nil {
		t.Fatalf("appendix not stored: %v", err)
	}
	structure, err := st.GetStructure(ctx, appendix)
	if err != nil {
		t.Fatalf("GetStructure failed: %v", err)
	}
	if structure.OrderBy != "1001" || structure.Name != "Fee Schedule" {
		t.Errorf("unexpected appendix %+v", structure)
	}

	laws, err := st.LawsInStructure(ctx, appendix, true)
	if err != nil {
		t.Fatalf("LawsInStructure failed: %v", err)
	}
	if len(laws) != 2 {
		t.Fatalf("expected 2 appendix laws, got %d", len(laws))
	}
	if laws[0].CatchLine != "APPENDIX A. BUILDING FEES" || laws[0].OrderBy != "0003" {
		t.Errorf("unexpected appendix law %+v", laws[0])
	}
	if laws[1].CatchLine != RepealedCatchLine || laws[1].OrderBy != "0004" {
		t.Errorf("unexpected repealed law %+v", laws[1])
	}

	permalinks, _ := st.Permalinks(ctx)
	assertURLs(t, permalinks, []string{"/1/", "/1-1/", "/1-2/", "/appendix/", "/a/"})

	run, err := st.GetRun(ctx, report.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if run.Laws != 4 || run.Files != 4 || run.Finished.IsZero() {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestRun_Twice(t *testing.T) {
	ctx := context.Background()
	imp, st := newTestImporter(t, writeImportDir(t))

	for i := 0; i < 2; i++ {
		if _, err := imp.Run(ctx); err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
	}

	if n := countRows(t, st, "structure"); n != 2 {
		t.Errorf("structure rows = %d, want 2 after reimport", n)
	}
	// Laws are appended on every import.
	if n := countRows(t, st, "laws"); n != 8 {
		t.Errorf("law rows = %d, want 8", n)
	}
	if n := countRows(t, st, "import_runs"); n != 2 {
		t.Errorf("import runs = %d, want 2", n)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	imp, st := newTestImporter(t, writeImportDir(t))
	report, err := imp.Run(ctx)
	if err == nil {
		t.Fatal("expected context error")
	}
	if report != nil && report.Laws != 0 {
		t.Errorf("no file should be imported after cancellation: %+v", report)
	}
	if n := countRows(t, st, "laws"); n != 0 {
		t.Errorf("law rows = %d, want 0", n)
	}
}

// cancelOn cancels a context when a record with the given message is logged.
type cancelOn struct {
	message string
	cancel  context.CancelFunc
}

func (h cancelOn) Enabled(context.Context, slog.Level) bool { return true }

func (h cancelOn) Handle(_ context.Context, record slog.Record) error {
	if record.Message == h.message {
		h.cancel()
	}
	return nil
}

func (h cancelOn) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h cancelOn) WithGroup(string) slog.Handler { return h }

func TestRun_CancelledDuringLastFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.xml"), []byte(chapterOne), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.Default()
	cfg.Directory = dir
	st := store.OpenMemory(t)
	imp := New(st, cfg, WithImporterLogger(slog.New(cancelOn{message: "stored law", cancel: cancel})))

	report, err := imp.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() error = %v, want context.Canceled", err)
	}
	if report == nil {
		t.Fatal("expected a partial report")
	}
	if report.Laws != 1 {
		t.Errorf("laws = %d, want 1 stored before the cancellation", report.Laws)
	}
	if report.Permalinks != 0 {
		t.Errorf("permalinks = %d, want none after a cancelled run", report.Permalinks)
	}

	run, err := st.GetRun(context.Background(), report.RunID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if !run.Finished.IsZero() {
		t.Errorf("cancelled run recorded as finished: %+v", run)
	}
}

func TestRun_ReplaceKeepsOneRowPerSection(t *testing.T) {
	tests := []struct {
		name string
		run  func(ctx context.Context, imp *Importer) (*Report, error)
	}{
		{"watched run", func(ctx context.Context, imp *Importer) (*Report, error) {
			return imp.run(ctx, true)
		}},
		{"replace option", func(ctx context.Context, imp *Importer) (*Report, error) {
			WithReplace(true)(imp)
			return imp.Run(ctx)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			imp, st := newTestImporter(t, writeImportDir(t))

			for i := 0; i < 2; i++ {
				if _, err := tt.run(ctx, imp); err != nil {
					t.Fatalf("run %d failed: %v", i, err)
				}
			}

			want := map[string]int{
				"structure":       2,
				"laws":            4,
				"laws_meta":       4,
				"text":            4,
				"text_sections":   1,
				"laws_references": 1,
				"laws_history":    1,
				"dictionary":      1,
			}
			for table, n := range want {
				if got := countRows(t, st, table); got != n {
					t.Errorf("%s rows = %d after two runs, want %d", table, got, n)
				}
			}

			permalinks, err := st.Permalinks(ctx)
			if err != nil {
				t.Fatalf("Permalinks failed: %v", err)
			}
			assertURLs(t, permalinks, []string{"/1/", "/1-1/", "/1-2/", "/appendix/", "/a/"})
		})
	}
}

// failingStorage rejects one section and stores everything else.
type failingStorage struct {
	*store.Store
	section string
}

func (f failingStorage) StoreLaw(ctx context.Context, law *code.Law, editionID int64, records store.LawRecords) (int64, error) {
	if law.SectionNumber == f.section {
		return 0, errors.New("disk I/O error")
	}
	return f.Store.StoreLaw(ctx, law, editionID, records)
}

func TestImportFile_PersistenceFailureSkipsLaw(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "1.xml")
	if err := os.WriteFile(path, []byte(chapterOne), 0o644); err != nil {
		t.Fatal(err)
	}

	imp, st := newTestImporter(t, dir)
	edition, err := st.EnsureEdition(ctx, "current", "Current Edition", true)
	if err != nil {
		t.Fatalf("EnsureEdition failed: %v", err)
	}
	session, err := imp.NewSession(ctx)
	if err != nil {
		t.Fatalf("NewSession failed: %v", err)
	}

	report := &Report{}
	imp.importFile(ctx, failingStorage{Store: st, section: "1-1"}, session, edition.ID, path, report)

	if report.Imported != 1 || report.Laws != 1 {
		t.Errorf("imported %d laws %d, want 1 1", report.Imported, report.Laws)
	}

	var skips []Skip
	for _, skip := range session.Skipped() {
		if skip.Kind == SkipPersistence {
			skips = append(skips, skip)
		}
	}
	if len(skips) != 1 || !strings.HasPrefix(skips[0].Detail, "1-1: ") || skips[0].File != "1.xml" {
		t.Fatalf("unexpected persistence skips %+v", skips)
	}

	var section string
	if err := st.DB().QueryRow(`SELECT section FROM laws`).Scan(&section); err != nil {
		t.Fatalf("reading stored law: %v", err)
	}
	if section != "1-2" {
		t.Errorf("stored section = %q, want 1-2 after 1-1 failed", section)
	}
	if n := countRows(t, st, "dictionary"); n != 0 {
		t.Errorf("dictionary rows = %d, the failed law's definitions must not be stored", n)
	}
}

func TestLabels(t *testing.T) {
	ctx := context.Background()
	imp, _ := newTestImporter(t, writeImportDir(t))

	labels, err := imp.Labels(ctx)
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}
	if strings.Join(labels, ",") != strings.Join(DefaultLabels, ",") {
		t.Errorf("labels = %v, want defaults for an empty store", labels)
	}

	if _, err := imp.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	labels, err = imp.Labels(ctx)
	if err != nil {
		t.Fatalf("Labels failed: %v", err)
	}
	if got := strings.Join(labels, ","); got != "Appendix,Chapter,Section" {
		t.Errorf("labels = %s", got)
	}

	imp.config.StructureLabels = []string{"Division", "Section"}
	labels, _ = imp.Labels(ctx)
	if len(labels) != 2 || labels[0] != "Division" {
		t.Errorf("configured labels ignored: %v", labels)
	}
}

func TestImageAcceptor(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "1.xml"), []byte(chapterOne), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Directory = dir
	rejectAll := func(sanitize.Image) bool { return false }
	imp := New(store.OpenMemory(t), cfg, WithImporterLogger(discardLogger()), WithImageAcceptor(rejectAll))

	report, err := imp.Run(ctx)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Images != 0 {
		t.Errorf("images = %d, want 0", report.Images)
	}
}

func TestWatch(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping watch test in short mode")
	}

	dir := t.TempDir()
	imp, _ := newTestImporter(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	runs := make(chan *Report, 1)
	done := make(chan error, 1)
	go func() {
		done <- imp.Watch(ctx, 50*time.Millisecond, func(report *Report, err error) {
			if err != nil {
				return
			}
			select {
			case runs <- report:
			default:
			}
		})
	}()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher time to initialize
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "1-1-1-1.xml"), []byte(chapterOne), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	select {
	case report := <-runs:
		if report.Laws != 2 {
			t.Errorf("laws = %d, want 2", report.Laws)
		}
	case <-time.After(3 * time.Second):
		t.Log("Watch() did not detect file change within timeout (may be CI environment)")
	}
}

func TestWatch_NoDirectory(t *testing.T) {
	imp, _ := newTestImporter(t, "")
	if err := imp.Watch(context.Background(), 0, nil); err == nil {
		t.Error("Watch() without directory should return error")
	}
}
