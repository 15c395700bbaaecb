// Package importer turns vendor XML exports into structures and laws and
// persists them.
//
// A Session owns the state that spans every file of one import run: the
// appendix and section counters, the label vocabulary and the log of
// skipped items. Files must be fed to a session in order.
package importer

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/config"
	"github.com/coolbeans/amlegal/pkg/extract"
	"github.com/coolbeans/amlegal/pkg/sanitize"
)

var (
	// ErrNoStructure is returned when a heading matches neither the
	// structure nor the appendix pattern.
	ErrNoStructure = errors.New("no structure")

	// ErrInvalidSection is returned when a section heading yields no catch line.
	ErrInvalidSection = errors.New("invalid section")
)

// Log severities.
const (
	SeverityTrace   = 1
	SeverityInfo    = 2
	SeverityNotable = 3
	SeverityWarning = 5
)

// DefaultLabels is the vocabulary used when neither the configuration
// nor the database provides one.
var DefaultLabels = []string{"Title", "Chapter", "Article", code.ScopeSection}

// SkipKind classifies a non-fatal problem.
type SkipKind string

const (
	SkipStructure        SkipKind = "structure"
	SkipSection          SkipKind = "section"
	SkipInvalidStructure SkipKind = "invalid-structure"
	SkipOrphan           SkipKind = "orphan"
	SkipPersistence      SkipKind = "persistence"
	SkipDocument         SkipKind = "document"
)

// Skip records one item the session passed over.
type Skip struct {
	Kind   SkipKind `json:"kind"`
	File   string   `json:"file,omitempty"`
	Detail string   `json:"detail"`
}

// Session is one import run.
type Session struct {
	ID string

	config *config.Config
	logger *slog.Logger
	labels []string

	sanitizer   *sanitize.Sanitizer
	references  *extract.ReferenceExtractor
	definitions *extract.DefinitionExtractor
	history     *extract.HistoryExtractor

	appendixCount int
	sectionCount  int

	file       string
	laws       []*code.Law
	structures int
	skipped    []Skip
}

// SessionOption customises a Session.
type SessionOption func(*Session)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithImageFilter overrides the image filter derived from the
// configured blacklist.
func WithImageFilter(filter sanitize.ImageFilter) SessionOption {
	return func(s *Session) {
		if filter != nil {
			s.sanitizer = sanitize.New(
				sanitize.WithImageFilter(filter),
				sanitize.WithImagePath(s.config.ImagePath),
			)
		}
	}
}

// NewSession starts a session with fresh counters. labels is the
// structural vocabulary ordered from broadest to narrowest; when empty,
// DefaultLabels is used.
func NewSession(cfg *config.Config, labels []string, opts ...SessionOption) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if len(labels) == 0 {
		labels = DefaultLabels
	}

	references, err := extract.NewReferenceExtractor(cfg.CitationPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid citation pattern: %w", err)
	}

	s := &Session{
		ID:     uuid.New().String(),
		config: cfg,
		logger: slog.Default(),
		labels: append([]string(nil), labels...),
		sanitizer: sanitize.New(
			sanitize.WithImageFilter(cfg.ImageFilter()),
			sanitize.WithImagePath(cfg.ImagePath),
		),
		references:    references,
		definitions:   extract.NewDefinitionExtractor(labels),
		history:       extract.NewHistoryExtractor(references),
		appendixCount: 1,
		sectionCount:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("session", s.ID)
	return s, nil
}

// Labels returns the structural vocabulary of the session.
func (s *Session) Labels() []string {
	return s.labels
}

// Laws returns the laws parsed since the last call to TakeLaws.
func (s *Session) Laws() []*code.Law {
	return s.laws
}

// TakeLaws returns the pending laws and clears the list.
func (s *Session) TakeLaws() []*code.Law {
	laws := s.laws
	s.laws = nil
	return laws
}

// Skipped returns every skip recorded so far.
func (s *Session) Skipped() []Skip {
	return s.skipped
}

// Images returns every image accepted by the sanitizer.
func (s *Session) Images() []sanitize.Image {
	return s.sanitizer.Images()
}

// log is the session's logging collaborator.
func (s *Session) log(msg string, severity int, args ...any) {
	if s.file != "" {
		args = append(args, "file", s.file)
	}
	switch {
	case severity >= SeverityWarning:
		s.logger.Warn(msg, args...)
	case severity == SeverityNotable:
		s.logger.Info(msg, append(args, "notable", true)...)
	case severity == SeverityInfo:
		s.logger.Info(msg, args...)
	default:
		s.logger.Debug(msg, args...)
	}
}

func (s *Session) skip(kind SkipKind, detail string) {
	s.skipped = append(s.skipped, Skip{Kind: kind, File: s.file, Detail: detail})
}
