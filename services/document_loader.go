package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"

	"medical-rag-platform/internal/logger"
	"medical-rag-platform/models"
)

// DocumentLoader reads every supported document in a folder.
type DocumentLoader interface {
	LoadFolder(ctx context.Context, dir string) ([]models.Document, error)
}

// FolderLoader loads *.pdf (one document per page), *.txt, *.md and *.html
// files from the top level of a folder. Files that cannot be parsed are
// logged and skipped.
type FolderLoader struct{}

func NewFolderLoader() *FolderLoader { return &FolderLoader{} }

// SupportedExtension reports whether name has a loadable extension.
func SupportedExtension(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf", ".txt", ".md", ".html", ".htm":
		return true
	}
	return false
}

func (l *FolderLoader) LoadFolder(ctx context.Context, dir string) ([]models.Document, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && SupportedExtension(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var docs []models.Document
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		fileDocs, err := l.LoadFile(path)
		if err != nil {
			logger.Warn("Skipping unreadable document", "source", path, "error", err)
			continue
		}
		docs = append(docs, fileDocs...)
	}
	return docs, nil
}

// LoadFile loads a single file. Empty pages are dropped.
func (l *FolderLoader) LoadFile(path string) ([]models.Document, error) {
	var (
		docs []models.Document
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		docs, err = loadPDF(path)
	case ".html", ".htm":
		docs, err = loadHTML(path)
	default:
		docs, err = loadPlain(path)
	}
	if err != nil {
		return nil, err
	}

	out := docs[:0]
	for _, d := range docs {
		d.Content = CleanExtractedText(d.Content)
		if d.Content != "" {
			out = append(out, d)
		}
	}
	return out, nil
}

func loadPDF(path string) (docs []models.Document, err error) {
	// the pdf package panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			docs, err = nil, fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pages := reader.NumPage()
	docs = make([]models.Document, 0, pages)
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(make(map[string]*pdf.Font))
		if err != nil {
			logger.Warn("Failed to extract page text", "source", path, "page", i, "error", err)
			continue
		}
		docs = append(docs, models.Document{Source: path, Page: strconv.Itoa(i), Content: text})
	}
	return docs, nil
}

func loadHTML(path string) ([]models.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc.Find("script, style, noscript, nav, footer").Remove()

	text := doc.Find("body").Text()
	if strings.TrimSpace(text) == "" {
		text = doc.Text()
	}
	return []models.Document{{Source: path, Page: models.NoPage, Content: text}}, nil
}

func loadPlain(path string) ([]models.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return []models.Document{{Source: path, Page: models.NoPage, Content: string(raw)}}, nil
}
