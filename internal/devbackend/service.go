// Package devbackend is a self-contained implementation of the RAG backend
// HTTP contract, for local development and end-to-end tests. It keeps
// sessions, history, the question cache and the corpus in sqlite and ranks
// chunks with the hybrid scorer in package retrieval.
package devbackend

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/liliang-cn/ragdesk/internal/config"
	"github.com/liliang-cn/ragdesk/internal/domain"
	"github.com/liliang-cn/ragdesk/internal/repository"
	"github.com/liliang-cn/ragdesk/internal/retrieval"
	"go.uber.org/zap"
)

const (
	// NotFoundAnswer is returned when no chunk scores above the minimum
	NotFoundAnswer = "Data not found"
	// AutoSessionName names sessions created by an ask without a session id
	AutoSessionName = "Auto-created session"
	// DefaultSessionName is used when a session is created without a name
	DefaultSessionName = "New Chat"

	citedSources  = 5
	sourceTextLen = 300
)

// Service implements the backend operations
type Service struct {
	sessions *repository.SessionRepository
	chunks   *repository.ChunkRepository
	cache    *repository.CacheRepository
	cfg      config.DevServerConfig
	logger   *zap.Logger

	mu    sync.RWMutex
	alpha float64
	index *retrieval.Index
}

// New creates the service and loads the corpus index
func New(db *repository.DB, cfg config.DevServerConfig, logger *zap.Logger) (*Service, error) {
	s := &Service{
		sessions: repository.NewSessionRepository(db),
		chunks:   repository.NewChunkRepository(db),
		cache:    repository.NewCacheRepository(db),
		cfg:      cfg,
		logger:   logger,
		alpha:    domain.ClampAlpha(cfg.DefaultAlpha),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rebuilds the search index from the chunk table
func (s *Service) Reload() error {
	chunks, err := s.chunks.List()
	if err != nil {
		return fmt.Errorf("failed to load chunks: %w", err)
	}
	index := retrieval.NewIndex(chunks)

	s.mu.Lock()
	s.index = index
	s.mu.Unlock()

	s.logger.Info("Corpus loaded", zap.Int("chunks", index.Len()), zap.Int("tables", index.Tables()))
	return nil
}

// CreateSession creates a session
func (s *Service) CreateSession(ctx context.Context, name string) (*domain.Session, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultSessionName
	}
	return s.sessions.Create(name)
}

// ListSessions lists sessions newest first
func (s *Service) ListSessions(ctx context.Context) ([]domain.Session, error) {
	return s.sessions.List()
}

// Messages returns the history of a session; unknown sessions have none
func (s *Service) Messages(ctx context.Context, id domain.SessionID) ([]domain.Message, error) {
	return s.sessions.Messages(id)
}

// DeleteSession deletes a session and its history
func (s *Service) DeleteSession(ctx context.Context, id domain.SessionID) error {
	return s.sessions.Delete(id)
}

// Ask answers a question within a session, creating one if none is given
func (s *Service) Ask(ctx context.Context, req domain.AskRequest) (*domain.AskResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	sessionID := req.SessionID
	if sessionID == "" {
		session, err := s.sessions.Create(AutoSessionName)
		if err != nil {
			return nil, err
		}
		sessionID = session.ID
	} else {
		session, err := s.sessions.Get(sessionID)
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
		}
	}

	if req.UseCache {
		cached, ok, err := s.cache.Get(question)
		if err != nil {
			return nil, err
		}
		if ok {
			if err := s.record(sessionID, question, cached); err != nil {
				return nil, err
			}
			s.logger.Debug("Answered from cache", zap.String("session_id", sessionID.String()))
			return &domain.AskResult{
				Answer:    cached,
				SessionID: sessionID,
				Sources:   []domain.Source{},
				FromCache: true,
			}, nil
		}
	}

	s.mu.RLock()
	index, alpha := s.index, s.alpha
	s.mu.RUnlock()

	hits := index.Search(question, alpha, s.cfg.TopK)
	answer := NotFoundAnswer
	sources := []domain.Source{}
	if len(hits) > 0 && hits[0].Score >= s.cfg.MinScore {
		if len(hits) > citedSources {
			hits = hits[:citedSources]
		}
		answer = compose(question, hits)
		sources = toSources(hits)
	}

	if err := s.record(sessionID, question, answer); err != nil {
		return nil, err
	}
	if err := s.cache.Put(question, answer); err != nil {
		s.logger.Warn("Failed to cache answer", zap.Error(err))
	}

	return &domain.AskResult{
		Answer:    answer,
		SessionID: sessionID,
		Sources:   sources,
	}, nil
}

func (s *Service) record(id domain.SessionID, question, answer string) error {
	return s.sessions.AppendMessages(id,
		domain.Message{Role: domain.RoleUser, Message: question},
		domain.Message{Role: domain.RoleAssistant, Message: answer},
	)
}

// SetAlpha sets the retrieval blend coefficient
func (s *Service) SetAlpha(alpha float64) error {
	if math.IsNaN(alpha) || alpha < 0 || alpha > 1 {
		return domain.ErrInvalidAlpha
	}
	s.mu.Lock()
	s.alpha = alpha
	s.mu.Unlock()
	s.logger.Info("Alpha updated", zap.Float64("alpha", alpha))
	return nil
}

// Alpha returns the current blend coefficient
func (s *Service) Alpha() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alpha
}

// Stats returns corpus statistics
func (s *Service) Stats() domain.SystemStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.SystemStats{
		TotalChunks: s.index.Len(),
		Alpha:       s.alpha,
		Tables:      s.index.Tables(),
	}
}

// Health reports liveness and the size of the loaded corpus
func (s *Service) Health() domain.HealthStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.HealthStatus{Status: domain.HealthHealthy, ChunksLoaded: s.index.Len()}
}

func toSources(hits []retrieval.Hit) []domain.Source {
	sources := make([]domain.Source, 0, len(hits))
	for _, h := range hits {
		text := h.Chunk.Text
		if r := []rune(text); len(r) > sourceTextLen {
			text = string(r[:sourceTextLen])
		}
		sources = append(sources, domain.Source{
			Table:      h.Chunk.Table,
			Page:       h.Chunk.Page,
			Score:      h.Score,
			Text:       text + "...",
			ChunkID:    h.Chunk.ID,
			FaissScore: h.DenseScore,
			BM25Score:  h.KeywordScore,
		})
	}
	return sources
}

// compose builds an extractive markdown answer: the best matching sentence
// of each hit, cited by its position.
func compose(question string, hits []retrieval.Hit) string {
	terms := make(map[string]struct{})
	for _, t := range retrieval.Tokenize(question) {
		terms[t] = struct{}{}
	}

	var b strings.Builder
	b.WriteString("Based on the documents:\n\n")
	seen := make(map[string]struct{})
	for i, h := range hits {
		sentence := bestSentence(h.Chunk.Text, terms)
		if sentence == "" {
			continue
		}
		if _, dup := seen[sentence]; dup {
			continue
		}
		seen[sentence] = struct{}{}
		fmt.Fprintf(&b, "- %s [Source %d]\n", sentence, i+1)
	}
	top := hits[0].Chunk
	fmt.Fprintf(&b, "\n*Based on information from: %s, Page %d*", top.Table, top.Page)
	return b.String()
}

func bestSentence(text string, terms map[string]struct{}) string {
	best, bestScore := "", -1
	for _, sentence := range splitSentences(text) {
		score := 0
		for _, t := range retrieval.Tokenize(sentence) {
			if _, ok := terms[t]; ok {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = sentence, score
		}
	}
	return best
}

func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	var out []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(text[start : i+1]); s != "" {
				out = append(out, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}
