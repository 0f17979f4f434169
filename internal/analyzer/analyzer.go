// Package analyzer fetches a source URL once and produces an initial
// assessment: archive classification, page title, embedded documents,
// iframes, and pagination markers. Fetch failures are recorded on the
// result rather than propagated; extraction can proceed with partial
// metadata.
package analyzer

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/danyelajunebrown/reparations-pipeline/internal/fetcher"
	"github.com/danyelajunebrown/reparations-pipeline/internal/model"
)

// Fetcher is the page-fetch dependency; satisfied by fetcher.HTTPFetcher.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetcher.Page, error)
}

// Analyzer classifies source URLs and extracts content pointers.
type Analyzer struct {
	fetch Fetcher
}

// New creates an Analyzer over the given fetcher.
func New(fetch Fetcher) *Analyzer {
	return &Analyzer{fetch: fetch}
}

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	iframeRe   = regexp.MustCompile(`(?i)<iframe[\s>]`)
	embeddedRe = regexp.MustCompile(`(?i)href="([^"]+\.(?:pdf|jpe?g|png|tiff?|djvu))"`)
	paginateRe = regexp.MustCompile(`(?i)(page \d+ of \d+|next page|&page=\d+|[?&]pg=\d+|class="pagination")`)
)

// Analyze fetches the URL once and classifies it. All failures downgrade
// to entries on Metadata.Errors; the returned metadata is never nil.
func (a *Analyzer) Analyze(ctx context.Context, rawURL string) *model.SourceMetadata {
	meta := &model.SourceMetadata{}

	if p := classifyArchive(rawURL); p != nil {
		meta.ArchiveKind = p.Kind
		meta.ContentType = p.ContentType
	}

	page, err := a.fetch.Fetch(ctx, rawURL)
	if err != nil {
		fetchErr := &model.UpstreamFetchError{URL: rawURL, Err: err}
		meta.Errors = append(meta.Errors, fetchErr.Error())
		zap.L().Warn("analyzer: fetch failed, continuing with partial metadata",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		return meta
	}

	meta.StatusCode = page.StatusCode
	if ct := page.ContentType; ct != "" {
		switch {
		case strings.Contains(ct, "text/html"):
			meta.ContentType = "html"
		case strings.Contains(ct, "application/pdf"):
			meta.ContentType = "pdf"
		case strings.HasPrefix(ct, "image/"):
			meta.ContentType = "image"
		}
	}

	body := page.Body
	if m := titleRe.FindSubmatch(body); len(m) > 1 {
		meta.PageTitle = collapseSpace(string(m[1]))
	}
	if m := embeddedRe.FindSubmatch(body); len(m) > 1 {
		meta.EmbeddedDocURL = resolveRef(page.FinalURL, string(m[1]))
	}
	meta.HasIframe = iframeRe.Match(body)
	meta.HasPagination = paginateRe.Match(body)

	return meta
}

// Summary renders a human-readable assessment of the analysis.
func Summary(meta *model.SourceMetadata) string {
	var b strings.Builder
	if meta.ArchiveKind != "" {
		fmt.Fprintf(&b, "This looks like a %s source.", archiveLabel(meta.ArchiveKind))
	} else {
		b.WriteString("I don't recognize this archive.")
	}
	if meta.PageTitle != "" {
		fmt.Fprintf(&b, " The page is titled %q.", meta.PageTitle)
	}
	if meta.EmbeddedDocURL != "" {
		b.WriteString(" I found an embedded document attached to the page.")
	}
	if meta.HasPagination {
		b.WriteString(" The record appears to span multiple pages.")
	}
	if len(meta.Errors) > 0 {
		b.WriteString(" I couldn't fully load the page, so I'll rely on your description of it.")
	}
	return b.String()
}

// Questions enumerates what the analyzer still needs to know, driven by
// which signals are missing.
func Questions(meta *model.SourceMetadata) []string {
	var qs []string
	if meta.ContentType == "" {
		qs = append(qs, "What kind of content is at this URL — a scanned image, a PDF, or a web page with text?")
	}
	qs = append(qs, "How would you describe the document's layout — for example, a table with columns, a list of names, or narrative text?")
	qs = append(qs, "Is the document handwritten or printed, and how readable is it?")
	if meta.ArchiveKind == "" {
		qs = append(qs, "What archive or collection does this document come from?")
	}
	return qs
}

func archiveLabel(kind string) string {
	for _, p := range archivePatterns {
		if p.Kind == kind {
			return p.Note
		}
	}
	return kind
}

var spaceRe = regexp.MustCompile(`\s+`)

func collapseSpace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// resolveRef makes a relative href absolute against the page URL.
func resolveRef(pageURL, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	base := pageURL
	if i := strings.LastIndex(base, "/"); i > len("https://") {
		base = base[:i]
	}
	return base + "/" + strings.TrimPrefix(href, "/")
}
