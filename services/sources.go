package services

import (
	"path/filepath"
	"strings"

	"medical-rag-platform/models"
)

// BuildSources turns retrieved chunks into attributions, one per
// (title, page), in retrieval order. Chunks without metadata are skipped.
func BuildSources(chunks []models.Chunk) []models.Source {
	type key struct{ title, page string }
	seen := make(map[key]struct{})
	sources := make([]models.Source, 0, len(chunks))

	for _, ch := range chunks {
		if ch.Metadata == nil {
			continue
		}
		title := ch.Metadata.SourceOr(models.UnknownTitle)
		page := ch.Metadata.PageOr(models.NoPage)

		k := key{title, page}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		sources = append(sources, models.Source{
			Title:     title,
			Page:      page,
			Paragraph: strings.TrimSpace(ch.Content),
			URL:       sourceURL(title),
		})
	}
	return sources
}

func sourceURL(title string) string {
	if strings.HasPrefix(title, "http") {
		return title
	}
	return "/files/" + filepath.Base(title)
}
