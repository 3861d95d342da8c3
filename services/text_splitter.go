package services

import (
	"strings"
	"unicode/utf8"

	"medical-rag-platform/models"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// TextSplitter cuts documents into overlapping chunks, preferring paragraph,
// then line, then word boundaries. Sizes are counted in runes.
type TextSplitter struct {
	chunkSize  int
	overlap    int
	separators []string
}

func NewTextSplitter(chunkSize, overlap int) *TextSplitter {
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &TextSplitter{chunkSize: chunkSize, overlap: overlap, separators: defaultSeparators}
}

// Split returns chunks for every document in order. Position counts chunks
// within a source across all of its pages.
func (s *TextSplitter) Split(docs []models.Document) []models.Chunk {
	positions := make(map[string]int)
	var chunks []models.Chunk
	for _, doc := range docs {
		source := doc.Source
		if source == "" {
			source = models.UnknownSource
		}
		page := doc.Page
		if page == "" {
			page = models.NoPage
		}
		for _, text := range s.SplitText(doc.Content) {
			chunks = append(chunks, models.Chunk{
				Content:  text,
				Position: positions[source],
				Metadata: &models.ChunkMetadata{Source: source, Page: page},
			})
			positions[source]++
		}
	}
	return chunks
}

// SplitText splits a single text.
func (s *TextSplitter) SplitText(text string) []string {
	return s.split(text, s.separators)
}

func (s *TextSplitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var pieces []string
	if separator == "" {
		pieces = strings.Split(text, "")
	} else {
		pieces = strings.Split(text, separator)
	}

	var out, good []string
	for _, p := range pieces {
		if p == "" {
			continue
		}
		if utf8.RuneCountInString(p) < s.chunkSize {
			good = append(good, p)
			continue
		}
		if len(good) > 0 {
			out = append(out, s.merge(good, separator)...)
			good = nil
		}
		if len(rest) == 0 {
			out = append(out, p)
		} else {
			out = append(out, s.split(p, rest)...)
		}
	}
	if len(good) > 0 {
		out = append(out, s.merge(good, separator)...)
	}
	return out
}

// merge packs small pieces into chunks no longer than chunkSize, carrying up
// to overlap runes of trailing pieces into the next chunk.
func (s *TextSplitter) merge(pieces []string, separator string) []string {
	sepLen := utf8.RuneCountInString(separator)
	var docs, current []string
	total := 0

	joined := func() {
		if doc := strings.TrimSpace(strings.Join(current, separator)); doc != "" {
			docs = append(docs, doc)
		}
	}
	withSep := func(n int) int {
		if len(current) > 0 {
			return n + sepLen
		}
		return n
	}

	for _, p := range pieces {
		n := utf8.RuneCountInString(p)
		if total+withSep(n) > s.chunkSize && len(current) > 0 {
			joined()
			for total > s.overlap || (total+withSep(n) > s.chunkSize && total > 0) {
				drop := utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					drop += sepLen
				}
				total -= drop
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
		if len(current) > 1 {
			total += sepLen
		}
	}
	joined()
	return docs
}
