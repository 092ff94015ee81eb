package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/artifact-api/internal/classifier"
	"github.com/example/artifact-api/internal/logging"
	"github.com/example/artifact-api/internal/objectstore"
	"github.com/example/artifact-api/internal/repository"
	"github.com/example/artifact-api/internal/vision"
)

// AnalysisRepository defines the persistence operations needed by the analysis flow.
type AnalysisRepository interface {
	SaveAnalysis(ctx context.Context, record *repository.AnalysisRecord) error
	FindAnalysis(ctx context.Context, requestID, userID string) (*repository.AnalysisRecord, error)
	FindLatestAnalysisByHash(ctx context.Context, userID, hash string) (*repository.AnalysisRecord, error)
	AggregateAnalyses(ctx context.Context) (*repository.AnalysisAggregation, error)
}

// Upload is an image received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AnalysisOutcome is what the API reports for an analysed image.
type AnalysisOutcome struct {
	RequestID string
	UserID    string
	ImageURL  string
	Hash      string
	Analysis  *vision.Analysis
	Verdict   classifier.Verdict
	Cached    bool
	CreatedAt time.Time
}

// AnalysisStats summarises the verdicts produced so far.
type AnalysisStats struct {
	Total          int64   `json:"total"`
	AIGenerated    int64   `json:"aiGenerated"`
	HumanGenerated int64   `json:"humanGenerated"`
	AIRatio        float64 `json:"aiRatio"`
}

type cachedAnalysis struct {
	RequestID string           `json:"request_id"`
	UserID    string           `json:"user_id"`
	ImageURL  string           `json:"image_url"`
	Hash      string           `json:"sha1_hash"`
	Analysis  *vision.Analysis `json:"analysis"`
	CreatedAt time.Time        `json:"created_at"`
}

const processingMarker = "processing"

// AnalysisUseCase uploads images, asks the vision service about them and
// classifies the returned labels.
type AnalysisUseCase struct {
	repo       AnalysisRepository
	cache      Cache
	store      objectstore.Store
	analyzer   vision.Analyzer
	classifier classifier.Classifier
	logger     *zap.Logger
	retry      retryPolicy
	cacheTTL   time.Duration
	now        func() time.Time
}

// NewAnalysisUseCase constructs a new use case instance.
func NewAnalysisUseCase(repo AnalysisRepository, cache Cache, store objectstore.Store, analyzer vision.Analyzer, c classifier.Classifier, cacheTTL time.Duration, logger *zap.Logger) *AnalysisUseCase {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &AnalysisUseCase{
		repo:       repo,
		cache:      cache,
		store:      store,
		analyzer:   analyzer,
		classifier: c,
		logger:     logger.Named("analysis_usecase"),
		retry:      defaultRetryPolicy(),
		cacheTTL:   cacheTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Classifier returns the strategy in use.
func (uc *AnalysisUseCase) Classifier() classifier.Classifier {
	return uc.classifier
}

// Analyze stores the upload, runs the vision analysis and classifies it.
// Identical image bytes the same user analysed before are answered from cache,
// or from the database once the cache entry has expired.
func (uc *AnalysisUseCase) Analyze(ctx context.Context, userID string, upload Upload) (*AnalysisOutcome, error) {
	sum := sha1.Sum(upload.Data)
	hash := hex.EncodeToString(sum[:])

	if outcome, ok := uc.lookupHash(ctx, userID, hash); ok {
		return outcome, nil
	}

	requestID := uuid.NewString()
	opLogger := logging.WithOperation(uc.logger, "usecase.analyze", requestID)

	if err := uc.retry.do(ctx, uc.logger, requestID, "cache.set.processing", func() error {
		return uc.cache.Set(ctx, resultKey(requestID), processingMarker, time.Minute)
	}); err != nil {
		opLogger.Error("failed to set processing flag", zap.Error(err))
		return nil, err
	}

	var (
		imageURL string
		analysis *vision.Analysis
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := uc.store.Put(gctx, objectstore.Object{
			Name:        objectstore.ObjectName(upload.Filename),
			ContentType: upload.ContentType,
			Data:        upload.Data,
		})
		if err != nil {
			return logging.NewOperationError("usecase.upload_image", requestID, err)
		}
		imageURL = u
		return nil
	})
	g.Go(func() error {
		a, err := uc.analyzer.Analyze(gctx, vision.Image{Content: upload.Data})
		if err != nil {
			return logging.NewOperationError("usecase.vision_analyze", requestID, err)
		}
		analysis = a
		return nil
	})
	if err := g.Wait(); err != nil {
		opLogger.Error("analysis failed", zap.Error(err))
		uc.clearProcessing(ctx, requestID)
		return nil, err
	}

	outcome := &AnalysisOutcome{
		RequestID: requestID,
		UserID:    userID,
		ImageURL:  imageURL,
		Hash:      hash,
		Analysis:  analysis,
		Verdict:   uc.classifier.Classify(analysis.LabelSet()),
		CreatedAt: uc.now(),
	}

	if err := uc.persist(ctx, outcome); err != nil {
		opLogger.Error("failed to persist analysis", zap.Error(err))
		uc.clearProcessing(ctx, requestID)
		return nil, err
	}

	opLogger.Info("image analysed",
		zap.String("mode", string(uc.classifier.Mode())),
		zap.Bool("is_ai", outcome.Verdict.IsAI),
		zap.Strings("indicators", outcome.Verdict.MatchedIndicators),
	)
	return outcome, nil
}

// Detect analyses an image that is already hosted somewhere. Nothing is stored.
func (uc *AnalysisUseCase) Detect(ctx context.Context, imageURL string) (*AnalysisOutcome, error) {
	if !validImageURL(imageURL) {
		return nil, ErrInvalidImageURL
	}
	analysis, err := uc.analyzer.Analyze(ctx, vision.Image{URI: imageURL})
	if err != nil {
		return nil, logging.NewOperationError("usecase.detect", "", err)
	}
	return &AnalysisOutcome{
		ImageURL:  imageURL,
		Analysis:  analysis,
		Verdict:   uc.classifier.Classify(analysis.LabelSet()),
		CreatedAt: uc.now(),
	}, nil
}

// GetResult retrieves an analysis outcome from cache or persistence.
func (uc *AnalysisUseCase) GetResult(ctx context.Context, userID, requestID string) (*AnalysisOutcome, error) {
	value, err := uc.withRedisGet(ctx, requestID, "cache.get.result", resultKey(requestID))
	switch {
	case err == nil && value == processingMarker:
		return nil, ErrAnalysisPending
	case err == nil:
		if outcome, ok := uc.decode(value, requestID); ok {
			if outcome.UserID != userID {
				return nil, ErrNotFound
			}
			return outcome, nil
		}
	case !errors.Is(err, redis.Nil):
		logging.WithOperation(uc.logger, "usecase.get_result", requestID).Warn("failed to read cache", zap.Error(err))
	}

	record, err := uc.repo.FindAnalysis(ctx, requestID, userID)
	if err != nil {
		return nil, err
	}
	return uc.fromRecord(record)
}

// Stats aggregates verdict counters from persisted analyses.
func (uc *AnalysisUseCase) Stats(ctx context.Context) (*AnalysisStats, error) {
	agg, err := uc.repo.AggregateAnalyses(ctx)
	if err != nil {
		return nil, err
	}
	stats := &AnalysisStats{
		Total:          agg.TotalCount,
		AIGenerated:    agg.AICount,
		HumanGenerated: agg.TotalCount - agg.AICount,
	}
	if agg.TotalCount > 0 {
		stats.AIRatio = float64(agg.AICount) / float64(agg.TotalCount)
	}
	return stats, nil
}

func (uc *AnalysisUseCase) lookupHash(ctx context.Context, userID, hash string) (*AnalysisOutcome, bool) {
	value, err := uc.withRedisGet(ctx, "", "cache.get.hash", hashKey(userID, hash))
	if err == nil {
		outcome, ok := uc.decode(value, "")
		if ok {
			outcome.Cached = true
		}
		return outcome, ok
	}
	if !errors.Is(err, redis.Nil) {
		uc.logger.Warn("failed to read hash cache", zap.Error(err), zap.String("sha1_hash", hash))
		return nil, false
	}

	record, err := uc.repo.FindLatestAnalysisByHash(ctx, userID, hash)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			uc.logger.Warn("failed to look up analysis by hash", zap.Error(err), zap.String("sha1_hash", hash))
		}
		return nil, false
	}
	outcome, err := uc.fromRecord(record)
	if err != nil {
		return nil, false
	}
	outcome.Cached = true
	return outcome, true
}

func (uc *AnalysisUseCase) persist(ctx context.Context, outcome *AnalysisOutcome) error {
	cached := cachedAnalysis{
		RequestID: outcome.RequestID,
		UserID:    outcome.UserID,
		ImageURL:  outcome.ImageURL,
		Hash:      outcome.Hash,
		Analysis:  outcome.Analysis,
		CreatedAt: outcome.CreatedAt,
	}
	serialized, err := json.Marshal(cached)
	if err != nil {
		return logging.NewOperationError("usecase.serialize_analysis", outcome.RequestID, err)
	}

	record := &repository.AnalysisRecord{
		RequestID:  outcome.RequestID,
		UserID:     outcome.UserID,
		SHA1Hash:   outcome.Hash,
		ImageURL:   outcome.ImageURL,
		Mode:       string(uc.classifier.Mode()),
		IsAI:       outcome.Verdict.IsAI,
		Category:   string(outcome.Verdict.Category),
		Indicators: strings.Join(outcome.Verdict.MatchedIndicators, ","),
		Payload:    string(serialized),
		CreatedAt:  outcome.CreatedAt,
	}
	if err := uc.repo.SaveAnalysis(ctx, record); err != nil {
		return logging.NewOperationError("usecase.save_analysis", outcome.RequestID, err)
	}

	for _, key := range []string{resultKey(outcome.RequestID), hashKey(outcome.UserID, outcome.Hash)} {
		key := key
		if err := uc.retry.do(ctx, uc.logger, outcome.RequestID, "cache.set.result", func() error {
			return uc.cache.Set(ctx, key, string(serialized), uc.cacheTTL)
		}); err != nil {
			return err
		}
	}
	return nil
}

// clearProcessing drops the marker of a failed analysis so polling clients
// get 404 instead of 202 until the marker expires.
func (uc *AnalysisUseCase) clearProcessing(ctx context.Context, requestID string) {
	if err := uc.cache.Delete(context.WithoutCancel(ctx), resultKey(requestID)); err != nil {
		logging.WithOperation(uc.logger, "cache.delete.processing", requestID).Warn("failed to clear processing flag", zap.Error(err))
	}
}

func (uc *AnalysisUseCase) decode(value, requestID string) (*AnalysisOutcome, bool) {
	var payload cachedAnalysis
	if err := json.Unmarshal([]byte(value), &payload); err != nil {
		logging.WithOperation(uc.logger, "usecase.decode_cached", requestID).Warn("failed to decode cached result", zap.Error(err))
		return nil, false
	}
	return uc.outcomeFrom(payload), true
}

func (uc *AnalysisUseCase) fromRecord(record *repository.AnalysisRecord) (*AnalysisOutcome, error) {
	var payload cachedAnalysis
	if err := json.Unmarshal([]byte(record.Payload), &payload); err != nil {
		return nil, logging.NewOperationError("usecase.decode_record", record.RequestID, err)
	}
	payload.RequestID = record.RequestID
	payload.UserID = record.UserID
	payload.ImageURL = record.ImageURL
	payload.Hash = record.SHA1Hash
	payload.CreatedAt = record.CreatedAt
	return uc.outcomeFrom(payload), nil
}

// outcomeFrom recomputes the verdict so a changed classifier configuration
// applies to stored analyses too.
func (uc *AnalysisUseCase) outcomeFrom(p cachedAnalysis) *AnalysisOutcome {
	return &AnalysisOutcome{
		RequestID: p.RequestID,
		UserID:    p.UserID,
		ImageURL:  p.ImageURL,
		Hash:      p.Hash,
		Analysis:  p.Analysis,
		Verdict:   uc.classifier.Classify(p.Analysis.LabelSet()),
		CreatedAt: p.CreatedAt,
	}
}

func (uc *AnalysisUseCase) withRedisGet(ctx context.Context, requestID, operation, key string) (string, error) {
	var result string
	err := uc.retry.do(ctx, uc.logger, requestID, operation, func() error {
		value, err := uc.cache.Get(ctx, key)
		if err != nil {
			return err
		}
		result = value
		return nil
	})
	if err != nil {
		return "", err
	}
	return result, nil
}

func validImageURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	switch u.Scheme {
	case "http", "https", "gs":
		return true
	}
	return false
}
