package devbackend

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/liliang-cn/ragdesk/internal/domain"
	"go.uber.org/zap"
)

// IngestReport summarizes an ingestion run
type IngestReport struct {
	Files  int
	Chunks int
}

// DetectFileType detects file type from filename
func DetectFileType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".md", ".markdown":
		return domain.FileTypeMD
	case ".txt":
		return domain.FileTypeTXT
	case "":
		return ""
	default:
		return ext[1:]
	}
}

// IsSupported checks if file type is supported
func IsSupported(fileType string) bool {
	return fileType == domain.FileTypeMD || fileType == domain.FileTypeTXT
}

// IngestDir chunks every supported file under dir into the corpus and
// rebuilds the index. A file replaces the chunks previously ingested under
// its name.
func (s *Service) IngestDir(ctx context.Context, dir string) (*IngestReport, error) {
	report := &IngestReport{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !IsSupported(DetectFileType(d.Name())) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = d.Name()
		}
		n, err := s.ingest(filepath.ToSlash(rel), string(data))
		if err != nil {
			return err
		}
		report.Files++
		report.Chunks += n
		return nil
	})
	if err != nil {
		return report, err
	}

	if err := s.afterIngest(); err != nil {
		return report, err
	}
	s.logger.Info("Ingestion finished", zap.String("dir", dir), zap.Int("files", report.Files), zap.Int("chunks", report.Chunks))
	return report, nil
}

// IngestText stores text as the corpus table named table
func (s *Service) IngestText(table, text string) (int, error) {
	n, err := s.ingest(table, text)
	if err != nil {
		return 0, err
	}
	return n, s.afterIngest()
}

func (s *Service) ingest(table, text string) (int, error) {
	pieces := ChunkText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	chunks := make([]domain.Chunk, 0, len(pieces))
	for i, p := range pieces {
		chunks = append(chunks, domain.Chunk{Table: table, Page: i + 1, Text: p})
	}
	if err := s.chunks.ReplaceTable(table, chunks); err != nil {
		return 0, fmt.Errorf("failed to store chunks of %s: %w", table, err)
	}
	s.logger.Debug("Ingested", zap.String("table", table), zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// afterIngest rebuilds the index; cached answers may cite stale chunks, so
// the cache is dropped.
func (s *Service) afterIngest() error {
	if err := s.cache.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return s.Reload()
}

// ChunkText splits text into windows of at most size runes that overlap by
// overlap runes. Window ends are moved back to whitespace when possible.
func ChunkText(text string, size, overlap int) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	if size <= 0 {
		return []string{string(runes)}
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	var out []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			end = len(runes)
		} else if cut := lastSpace(runes[start:end]); cut > size/2 {
			end = start + cut
		}
		if piece := strings.TrimSpace(string(runes[start:end])); piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '\t' {
			return i
		}
	}
	return -1
}
