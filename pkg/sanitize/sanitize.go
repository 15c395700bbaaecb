// Package sanitize rewrites the vendor's paragraph markup into canonical
// markup: generic tables, open-only paragraph markers and image tags.
package sanitize

import (
	"regexp"
	"strings"
)

// DefaultImagePath is the path prefix accepted images are rewritten to.
const DefaultImagePath = "/downloads/"

// Image is the attribute map of one embedded picture marker.
type Image map[string]string

// ID returns the image's id attribute.
func (i Image) ID() string {
	return i["id"]
}

// ImageFilter decides whether an image may be published.
type ImageFilter func(image Image) bool

// AcceptAll is an ImageFilter that accepts every image.
func AcceptAll(Image) bool {
	return true
}

// BlacklistFilter rejects images whose id appears in the blacklist, such as
// municipal seals whose use is restricted.
func BlacklistFilter(blacklist []string) ImageFilter {
	blocked := make(map[string]bool, len(blacklist))
	for _, id := range blacklist {
		blocked[id] = true
	}
	return func(image Image) bool {
		return !blocked[image.ID()]
	}
}

// Sanitizer converts vendor paragraph markup. It is not safe for concurrent
// use; it records every accepted image.
type Sanitizer struct {
	filter    ImageFilter
	imagePath string
	images    []Image

	tableFormatPattern *regexp.Regexp
	scrollTablePattern *regexp.Regexp
	cellFormatPattern  *regexp.Regexp
	cellPattern        *regexp.Regexp
	emptyTablePattern  *regexp.Regexp
	paraOpenPattern    *regexp.Regexp
	cellParaPattern    *regexp.Regexp
	paraCellPattern    *regexp.Regexp
	picturePattern     *regexp.Regexp
	attributePattern   *regexp.Regexp
}

// Option customises a Sanitizer.
type Option func(*Sanitizer)

// WithImageFilter replaces the default accept-all image filter.
func WithImageFilter(filter ImageFilter) Option {
	return func(s *Sanitizer) {
		if filter != nil {
			s.filter = filter
		}
	}
}

// WithImagePath sets the path prefix for accepted images.
func WithImagePath(path string) Option {
	return func(s *Sanitizer) {
		if path != "" {
			s.imagePath = path
		}
	}
}

// New creates a Sanitizer.
func New(opts ...Option) *Sanitizer {
	s := &Sanitizer{
		filter:    AcceptAll,
		imagePath: DefaultImagePath,

		tableFormatPattern: regexp.MustCompile(`(?s)<TABLEFORMAT[^>]*>.*?</TABLEFORMAT>`),
		scrollTablePattern: regexp.MustCompile(`(?s)<SCROLL_TABLE[^>]*>(.*?)</SCROLL_TABLE>`),
		cellFormatPattern:  regexp.MustCompile(`(?s)<CELLFORMAT[^>]*>(.*?)</CELLFORMAT>`),
		cellPattern:        regexp.MustCompile(`(?s)<CELL[^>]*>(.*?)</CELL>`),
		emptyTablePattern:  regexp.MustCompile(`(?is)<table>\s*</table>`),
		paraOpenPattern:    regexp.MustCompile(`<PARA[^>]*>`),
		cellParaPattern:    regexp.MustCompile(`<td>(?:\s*<p>)+`),
		paraCellPattern:    regexp.MustCompile(`(?:<p>\s*)+</td>`),
		picturePattern:     regexp.MustCompile(`<PICTURE([^>]*?)/>`),
		attributePattern:   regexp.MustCompile(`([a-zA-Z_-]+)="([^"]*)"`),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var tagReplacer = strings.NewReplacer(
	"<ROW>", "<tr>",
	"</ROW>", "</tr>",
	"<COL>", "<td>",
	"</COL>", "</td>",
)

// Clean rewrites one paragraph's markup. The steps run in a fixed order;
// later steps depend on the output of earlier ones.
func (s *Sanitizer) Clean(markup string) string {
	markup = s.tableFormatPattern.ReplaceAllString(markup, "")
	markup = s.scrollTablePattern.ReplaceAllString(markup, "<table>$1</table>")

	markup = tagReplacer.Replace(markup)
	markup = s.cellFormatPattern.ReplaceAllString(markup, "$1")
	markup = s.cellPattern.ReplaceAllString(markup, "$1")

	markup = s.emptyTablePattern.ReplaceAllString(markup, "")

	// Paragraphs are never closed in canonical markup.
	markup = s.paraOpenPattern.ReplaceAllString(markup, "<p>")
	markup = strings.ReplaceAll(markup, "</PARA>", "<p>")

	markup = s.cellParaPattern.ReplaceAllString(markup, "<td>")
	markup = s.paraCellPattern.ReplaceAllString(markup, "</td>")

	markup = strings.ReplaceAll(markup, `<TAB tab-count="1"/>`, " ")

	markup = s.resolveImages(markup)

	return strings.TrimSpace(markup)
}

func (s *Sanitizer) resolveImages(markup string) string {
	return s.picturePattern.ReplaceAllStringFunc(markup, func(marker string) string {
		m := s.picturePattern.FindStringSubmatch(marker)
		image := Image{}
		for _, attr := range s.attributePattern.FindAllStringSubmatch(m[1], -1) {
			image[attr[1]] = attr[2]
		}

		if !s.filter(image) {
			return ""
		}
		s.images = append(s.images, image)
		return `<img src="` + s.imagePath + image.ID() + `.jpg"/>`
	})
}

// Images returns the images accepted so far, in the order seen.
func (s *Sanitizer) Images() []Image {
	return s.images
}
