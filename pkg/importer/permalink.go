package importer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/coolbeans/amlegal/pkg/code"
	"github.com/coolbeans/amlegal/pkg/store"
)

// PermalinkStorage is the persistence the permalink pass needs.
type PermalinkStorage interface {
	ClearPermalinks(ctx context.Context) error
	InsertPermalink(ctx context.Context, permalink code.Permalink) error
	ChildStructures(ctx context.Context, parentID int64) ([]store.StructureRow, error)
	StructureLineage(ctx context.Context, id int64) ([]string, error)
	LawsInStructure(ctx context.Context, structureID int64, includeRepealed bool) ([]store.LawRow, error)
}

// PermalinkDeriver rebuilds the permalink table from the stored structure
// tree.
type PermalinkDeriver struct {
	store           PermalinkStorage
	logger          *slog.Logger
	longURLs        bool
	includeRepealed bool

	count int
}

// NewPermalinkDeriver creates a deriver. With longURLs a law's token nests
// under its structure's token; otherwise it is the bare section slug.
func NewPermalinkDeriver(st PermalinkStorage, longURLs, includeRepealed bool, logger *slog.Logger) *PermalinkDeriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &PermalinkDeriver{
		store:           st,
		logger:          logger,
		longURLs:        longURLs,
		includeRepealed: includeRepealed,
	}
}

// Build clears every permalink and derives them again, depth first from
// the top-level structures. It returns the number of permalinks written.
func (d *PermalinkDeriver) Build(ctx context.Context) (int, error) {
	if err := d.store.ClearPermalinks(ctx); err != nil {
		return 0, err
	}

	d.count = 0
	if err := d.walk(ctx, 0); err != nil {
		return d.count, err
	}

	d.logger.Info("built permalinks", "count", d.count)
	return d.count, nil
}

func (d *PermalinkDeriver) walk(ctx context.Context, parentID int64) error {
	children, err := d.store.ChildStructures(ctx, parentID)
	if err != nil {
		return err
	}

	for _, structure := range children {
		lineage, err := d.store.StructureLineage(ctx, structure.ID)
		if err != nil {
			return err
		}

		token := structureToken(lineage)
		url := "/" + token + "/"
		if !structure.Current {
			url = "/" + structure.EditionSlug + "/" + token + "/"
		}

		if err := d.insert(ctx, code.Permalink{
			ObjectType:   code.ObjectStructure,
			RelationalID: structure.ID,
			Identifier:   structure.Identifier,
			Token:        token,
			URL:          url,
		}); err != nil {
			return err
		}

		laws, err := d.store.LawsInStructure(ctx, structure.ID, d.includeRepealed)
		if err != nil {
			return err
		}
		for _, law := range laws {
			if err := d.insert(ctx, d.lawPermalink(structure, token, url, law)); err != nil {
				return err
			}
		}

		if err := d.walk(ctx, structure.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *PermalinkDeriver) lawPermalink(structure store.StructureRow, token, url string, law store.LawRow) code.Permalink {
	slug := Slugify(law.SectionNumber)

	permalink := code.Permalink{
		ObjectType:   code.ObjectLaw,
		RelationalID: law.ID,
		Identifier:   law.SectionNumber,
	}
	switch {
	case d.longURLs:
		permalink.Token = token + "/" + slug
		permalink.URL = url + slug + "/"
	case structure.Current:
		permalink.Token = slug
		permalink.URL = "/" + slug + "/"
	default:
		permalink.Token = slug
		permalink.URL = "/" + structure.EditionSlug + "/" + slug + "/"
	}
	return permalink
}

func (d *PermalinkDeriver) insert(ctx context.Context, permalink code.Permalink) error {
	if err := d.store.InsertPermalink(ctx, permalink); err != nil {
		return fmt.Errorf("permalink for %s %d: %w", permalink.ObjectType, permalink.RelationalID, err)
	}
	d.count++
	return nil
}

// structureToken joins the slugs of a lineage, which runs innermost
// first, from the outermost structure down. Blank identifiers are skipped.
func structureToken(lineage []string) string {
	parts := make([]string, 0, len(lineage))
	for i := len(lineage) - 1; i >= 0; i-- {
		if len(lineage[i]) == 0 {
			continue
		}
		parts = append(parts, Slugify(lineage[i]))
	}
	return strings.Join(parts, "/")
}

// Slugify lowercases value, keeps letters, digits, hyphens and periods,
// and drops one trailing period. Interior periods are kept so that
// sections "1-15.1" and "1-151" get distinct slugs.
func Slugify(value string) string {
	value = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '.':
			return r
		default:
			return -1
		}
	}, strings.ToLower(value))
	return strings.TrimSuffix(value, ".")
}
