package kb

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/mathmentor/mathrag/internal/errors"
)

// sectionPattern matches second-level markdown headers at the start of a line.
var sectionPattern = regexp.MustCompile(`(?m)^## +(.+)$`)

// markdownExtensions are the document extensions the loader ingests.
var markdownExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
}

// Loader ingests a knowledge-base directory into chunks.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a knowledge-base loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// LoadDir walks the knowledge-base root and produces the full chunk set.
// Topic subdirectories and documents are visited in sorted order, so
// identical source files always yield byte-identical chunk sets in the same
// order. A document that cannot be read is skipped with a logged warning;
// producing zero chunks overall is fatal.
func (l *Loader) LoadDir(root string) ([]Chunk, error) {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, errors.New(errors.ErrCodeKnowledgeBaseNotFound,
			fmt.Sprintf("knowledge base path not found: %s", root), err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.New(errors.ErrCodeKnowledgeBaseNotFound,
			fmt.Sprintf("cannot read knowledge base: %s", root), err)
	}

	var chunks []Chunk
	for _, entry := range sortedEntries(entries) {
		if !entry.IsDir() {
			continue
		}
		topic := entry.Name()
		topicChunks, err := l.loadTopic(filepath.Join(root, topic), topic)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, topicChunks...)
	}

	if len(chunks) == 0 {
		return nil, errors.New(errors.ErrCodeKnowledgeBaseEmpty,
			fmt.Sprintf("no chunks produced from %s: nothing to index", root), nil)
	}

	l.logger.Info("knowledge base loaded",
		slog.String("root", root),
		slog.Int("chunks", len(chunks)))

	return chunks, nil
}

// loadTopic ingests all documents of one topic directory.
func (l *Loader) loadTopic(dir, topic string) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		l.logger.Warn("skipping unreadable topic directory",
			slog.String("dir", dir),
			slog.String("error", err.Error()))
		return nil, nil
	}

	var chunks []Chunk
	for _, entry := range sortedEntries(entries) {
		if entry.IsDir() || !markdownExtensions[filepath.Ext(entry.Name())] {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		content, err := os.ReadFile(path)
		if err != nil {
			l.logger.Warn("skipping unreadable document",
				slog.String("path", path),
				slog.String("error", err.Error()))
			continue
		}

		docChunks := ChunkDocument(string(content), entry.Name(), topic)
		if len(docChunks) == 0 {
			l.logger.Warn("document produced no chunks",
				slog.String("path", path))
			continue
		}
		chunks = append(chunks, docChunks...)
	}

	return chunks, nil
}

// ChunkDocument splits one document into chunks. Sections are delimited by
// second-level headers; text before the first header (typically the document
// title line) is not indexed. Sections with empty bodies are skipped.
func ChunkDocument(content, source, topic string) []Chunk {
	subtopic := strings.TrimSuffix(source, filepath.Ext(source))

	headers := sectionPattern.FindAllStringSubmatchIndex(content, -1)
	if len(headers) == 0 {
		return nil
	}

	chunks := make([]Chunk, 0, len(headers))
	for i, loc := range headers {
		title := strings.TrimSpace(content[loc[2]:loc[3]])

		bodyStart := loc[1]
		bodyEnd := len(content)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1][0]
		}
		body := strings.TrimSpace(content[bodyStart:bodyEnd])
		if body == "" {
			continue
		}

		chunks = append(chunks, Chunk{
			Content:  anchorContent(title, body),
			Source:   source,
			Topic:    topic,
			Subtopic: subtopic,
			Type:     TypeForTitle(title),
		})
	}

	return chunks
}

// anchorContent synthesizes the stored chunk text. The title appears twice
// before the verbatim body so the concept name is always present in the
// indexed text even when the section body never repeats it.
func anchorContent(title, body string) string {
	return fmt.Sprintf("Concept: %s\n%s\n\n%s", title, title, body)
}

// TypeForTitle classifies a section by keyword matching on its lowercased
// title.
func TypeForTitle(title string) ChunkType {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "formula"):
		return ChunkTypeFormulas
	case strings.Contains(lower, "solution"), strings.Contains(lower, "template"):
		return ChunkTypeSolutionTemplate
	case strings.Contains(lower, "theorem"):
		return ChunkTypeTheorems
	default:
		return ChunkTypeGeneral
	}
}

// sortedEntries returns directory entries in lexical name order. os.ReadDir
// already sorts, but the ordering is load-bearing for ingestion idempotence,
// so it is enforced here rather than assumed.
func sortedEntries(entries []os.DirEntry) []os.DirEntry {
	sorted := make([]os.DirEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name() < sorted[j].Name()
	})
	return sorted
}
