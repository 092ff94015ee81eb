package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/example/artifact-api/internal/classifier"
	"github.com/example/artifact-api/internal/logging"
	"github.com/example/artifact-api/internal/objectstore"
	"github.com/example/artifact-api/internal/repository"
	"github.com/example/artifact-api/internal/vision"
)

type stubAnalysisRepository struct {
	saved     []*repository.AnalysisRecord
	saveErr   error
	findLog   *repository.AnalysisRecord
	findErr   error
	findCalls int
	byHash    *repository.AnalysisRecord
	agg       *repository.AnalysisAggregation
}

func (s *stubAnalysisRepository) SaveAnalysis(ctx context.Context, record *repository.AnalysisRecord) error {
	s.saved = append(s.saved, record)
	return s.saveErr
}

func (s *stubAnalysisRepository) FindAnalysis(ctx context.Context, requestID, userID string) (*repository.AnalysisRecord, error) {
	s.findCalls++
	if s.findErr != nil {
		return nil, s.findErr
	}
	if s.findLog != nil {
		return s.findLog, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubAnalysisRepository) FindLatestAnalysisByHash(ctx context.Context, userID, hash string) (*repository.AnalysisRecord, error) {
	if s.byHash != nil && s.byHash.UserID == userID && s.byHash.SHA1Hash == hash {
		return s.byHash, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubAnalysisRepository) AggregateAnalyses(ctx context.Context) (*repository.AnalysisAggregation, error) {
	if s.agg == nil {
		return &repository.AnalysisAggregation{}, nil
	}
	return s.agg, nil
}

type stubCache struct {
	mu      sync.Mutex
	values  map[string]string
	setErrs []error
	getErrs []error
	setKeys []string
}

func newStubCache() *stubCache {
	return &stubCache{values: map[string]string{}}
}

func (s *stubCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setKeys = append(s.setKeys, key)
	if len(s.setErrs) > 0 {
		err := s.setErrs[0]
		s.setErrs = s.setErrs[1:]
		if err != nil {
			return err
		}
	}
	s.values[key] = value.(string)
	return nil
}

func (s *stubCache) Get(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.getErrs) > 0 {
		err := s.getErrs[0]
		s.getErrs = s.getErrs[1:]
		return "", err
	}
	value, ok := s.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (s *stubCache) Delete(ctx context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

type stubStore struct {
	mu      sync.Mutex
	objects []objectstore.Object
	err     error
}

func (s *stubStore) Put(ctx context.Context, obj objectstore.Object) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.objects = append(s.objects, obj)
	return "https://storage.googleapis.com/artifact-ai-storage/" + obj.Name, nil
}

type stubAnalyzer struct {
	mu       sync.Mutex
	analysis *vision.Analysis
	err      error
	calls    []vision.Image
}

func (s *stubAnalyzer) Analyze(ctx context.Context, image vision.Image) (*vision.Analysis, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, image)
	if s.err != nil {
		return nil, s.err
	}
	return s.analysis, nil
}

type transientRedisError struct{}

func (transientRedisError) Error() string   { return "redis transient" }
func (transientRedisError) Timeout() bool   { return true }
func (transientRedisError) Temporary() bool { return true }

func analysisWith(descriptions ...string) *vision.Analysis {
	a := &vision.Analysis{}
	for _, d := range descriptions {
		a.Labels = append(a.Labels, classifier.Label{Description: d})
	}
	return a
}

func newTestAnalysisUseCase(t *testing.T, repo *stubAnalysisRepository, cache *stubCache, analyzer *stubAnalyzer, mode classifier.Mode) *AnalysisUseCase {
	t.Helper()
	opts := classifier.DefaultOptions()
	opts.Mode = mode
	c, err := classifier.New(opts)
	if err != nil {
		t.Fatalf("classifier: %v", err)
	}
	uc := NewAnalysisUseCase(repo, cache, &stubStore{}, analyzer, c, time.Hour, zap.NewNop())
	uc.retry.initialBackoff = time.Millisecond
	return uc
}

var testUpload = Upload{Filename: "art.png", ContentType: "image/png", Data: []byte("image")}

func TestAnalyzeRetriesRedisSet(t *testing.T) {
	cache := newStubCache()
	cache.setErrs = []error{transientRedisError{}}
	repo := &stubAnalysisRepository{}
	analyzer := &stubAnalyzer{analysis: analysisWith("Photograph")}
	uc := newTestAnalysisUseCase(t, repo, cache, analyzer, classifier.ModeKeyword)

	outcome, err := uc.Analyze(context.Background(), "user-1", testUpload)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if outcome.Verdict.IsAI {
		t.Fatalf("expected human verdict, got %+v", outcome.Verdict)
	}
	if len(cache.setKeys) < 4 {
		t.Fatalf("expected at least 4 cache set calls (retry + results), got %d", len(cache.setKeys))
	}
	if cache.setKeys[0] != cache.setKeys[1] {
		t.Fatalf("expected retry to target same key, got %s and %s", cache.setKeys[0], cache.setKeys[1])
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected record to be saved, got %d entries", len(repo.saved))
	}
}

func TestAnalyzeReturnsOperationErrorOnCacheFailure(t *testing.T) {
	cache := newStubCache()
	cache.setErrs = []error{errors.New("boom")}
	uc := newTestAnalysisUseCase(t, &stubAnalysisRepository{}, cache, &stubAnalyzer{analysis: &vision.Analysis{}}, classifier.ModeKeyword)

	_, err := uc.Analyze(context.Background(), "user-1", testUpload)
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	var opErr *logging.OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %T", err)
	}
	if opErr.Operation != "cache.set.processing" {
		t.Fatalf("unexpected operation: %s", opErr.Operation)
	}
}

func TestAnalyzePersistsVerdict(t *testing.T) {
	repo := &stubAnalysisRepository{}
	analyzer := &stubAnalyzer{analysis: analysisWith("CG artwork", "Person")}
	uc := newTestAnalysisUseCase(t, repo, newStubCache(), analyzer, classifier.ModeLabel)

	outcome, err := uc.Analyze(context.Background(), "user-1", testUpload)
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if !outcome.Verdict.IsAI || outcome.Verdict.Category != classifier.CategoryAI {
		t.Fatalf("expected AI verdict, got %+v", outcome.Verdict)
	}
	if outcome.ImageURL == "" || outcome.Hash == "" {
		t.Fatalf("expected image url and hash, got %+v", outcome)
	}
	if len(analyzer.calls) != 1 || string(analyzer.calls[0].Content) != "image" {
		t.Fatalf("expected analyzer to receive image content, got %+v", analyzer.calls)
	}

	record := repo.saved[0]
	if record.Mode != "label" || !record.IsAI || record.Indicators != "CG artwork" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestAnalyzeAnswersRepeatedImageFromCache(t *testing.T) {
	repo := &stubAnalysisRepository{}
	cache := newStubCache()
	analyzer := &stubAnalyzer{analysis: analysisWith("Neural network art")}
	uc := newTestAnalysisUseCase(t, repo, cache, analyzer, classifier.ModeKeyword)

	first, err := uc.Analyze(context.Background(), "user-1", testUpload)
	if err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	second, err := uc.Analyze(context.Background(), "user-1", testUpload)
	if err != nil {
		t.Fatalf("second analyze: %v", err)
	}

	if len(analyzer.calls) != 1 {
		t.Fatalf("expected one vision call, got %d", len(analyzer.calls))
	}
	if !second.Cached || second.RequestID != first.RequestID {
		t.Fatalf("expected cached outcome of %s, got %+v", first.RequestID, second)
	}
	if second.Verdict.IsAI != first.Verdict.IsAI {
		t.Fatalf("expected identical verdicts")
	}

	if _, err := uc.Analyze(context.Background(), "user-2", testUpload); err != nil {
		t.Fatalf("other user analyze: %v", err)
	}
	if len(analyzer.calls) != 2 {
		t.Fatalf("expected cache to be scoped per user, got %d vision calls", len(analyzer.calls))
	}
}

func TestAnalyzeAnswersRepeatedImageFromDatabase(t *testing.T) {
	sum := sha1.Sum(testUpload.Data)
	repo := &stubAnalysisRepository{byHash: &repository.AnalysisRecord{
		RequestID: "old-req",
		UserID:    "user-1",
		SHA1Hash:  hex.EncodeToString(sum[:]),
		Payload:   `{"analysis":{"labels":[{"description":"Photograph"}]}}`,
	}}
	analyzer := &stubAnalyzer{analysis: analysisWith("CGI")}
	uc := newTestAnalysisUseCase(t, repo, newStubCache(), analyzer, classifier.ModeKeyword)

	outcome, err := uc.Analyze(context.Background(), "user-1", testUpload)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if !outcome.Cached || outcome.RequestID != "old-req" || outcome.Verdict.IsAI {
		t.Fatalf("expected stored human verdict, got %+v", outcome)
	}
	if len(analyzer.calls) != 0 {
		t.Fatalf("expected no vision call, got %d", len(analyzer.calls))
	}
}

func TestAnalyzeFailsWhenVisionFails(t *testing.T) {
	repo := &stubAnalysisRepository{}
	cache := newStubCache()
	uc := newTestAnalysisUseCase(t, repo, cache, &stubAnalyzer{err: errors.New("quota")}, classifier.ModeKeyword)

	if _, err := uc.Analyze(context.Background(), "user-1", testUpload); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(repo.saved) != 0 {
		t.Fatalf("expected nothing to be saved, got %d", len(repo.saved))
	}
	if len(cache.values) != 0 {
		t.Fatalf("expected processing flag to be cleared, got %v", cache.values)
	}
}

func TestGetResultFallsBackToRepositoryWhenCacheMiss(t *testing.T) {
	repo := &stubAnalysisRepository{findLog: &repository.AnalysisRecord{
		RequestID: "req",
		UserID:    "user",
		ImageURL:  "https://example.com/a.png",
		Payload:   `{"analysis":{"labels":[{"description":"Animation"}]}}`,
	}}
	uc := newTestAnalysisUseCase(t, repo, newStubCache(), &stubAnalyzer{}, classifier.ModeLabel)

	outcome, err := uc.GetResult(context.Background(), "user", "req")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if outcome.RequestID != "req" || !outcome.Verdict.IsAI {
		t.Fatalf("unexpected outcome: %+v", outcome)
	}
	if repo.findCalls != 1 {
		t.Fatalf("expected repository to be queried once, got %d", repo.findCalls)
	}
}

func TestGetResultReportsPending(t *testing.T) {
	cache := newStubCache()
	cache.values[resultKey("req")] = processingMarker
	uc := newTestAnalysisUseCase(t, &stubAnalysisRepository{}, cache, &stubAnalyzer{}, classifier.ModeKeyword)

	if _, err := uc.GetResult(context.Background(), "user", "req"); !errors.Is(err, ErrAnalysisPending) {
		t.Fatalf("expected ErrAnalysisPending, got %v", err)
	}
}

func TestGetResultHidesOtherUsersAnalyses(t *testing.T) {
	repo := &stubAnalysisRepository{}
	cache := newStubCache()
	uc := newTestAnalysisUseCase(t, repo, cache, &stubAnalyzer{analysis: analysisWith("Photo")}, classifier.ModeKeyword)

	outcome, err := uc.Analyze(context.Background(), "owner", testUpload)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if _, err := uc.GetResult(context.Background(), "intruder", outcome.RequestID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	got, err := uc.GetResult(context.Background(), "owner", outcome.RequestID)
	if err != nil || got.RequestID != outcome.RequestID {
		t.Fatalf("expected owner to read result, got %+v, %v", got, err)
	}
}

func TestDetectRejectsInvalidURL(t *testing.T) {
	analyzer := &stubAnalyzer{analysis: analysisWith("CGI")}
	uc := newTestAnalysisUseCase(t, &stubAnalysisRepository{}, newStubCache(), analyzer, classifier.ModeKeyword)

	for _, raw := range []string{"", "not a url", "ftp://host/a.png", "/relative.png"} {
		if _, err := uc.Detect(context.Background(), raw); !errors.Is(err, ErrInvalidImageURL) {
			t.Fatalf("Detect(%q): expected ErrInvalidImageURL, got %v", raw, err)
		}
	}

	outcome, err := uc.Detect(context.Background(), "https://example.com/a.png")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if !outcome.Verdict.IsAI {
		t.Fatalf("expected AI verdict, got %+v", outcome.Verdict)
	}
	if analyzer.calls[0].URI != "https://example.com/a.png" {
		t.Fatalf("expected analyzer to receive uri, got %+v", analyzer.calls[0])
	}
}

func TestStats(t *testing.T) {
	repo := &stubAnalysisRepository{agg: &repository.AnalysisAggregation{TotalCount: 4, AICount: 1}}
	uc := newTestAnalysisUseCase(t, repo, newStubCache(), &stubAnalyzer{}, classifier.ModeKeyword)

	stats, err := uc.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.HumanGenerated != 3 || stats.AIRatio != 0.25 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}
