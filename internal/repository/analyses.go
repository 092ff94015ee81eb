package repository

import "context"

// SaveAnalysis persists an analysis outcome.
func (r *Repository) SaveAnalysis(ctx context.Context, record *AnalysisRecord) error {
	return r.executeWithRetry(ctx, "repository.save_analysis", record.RequestID, func() error {
		return r.db.WithContext(ctx).Create(record).Error
	})
}

// FindAnalysis retrieves an analysis matching the request and owner.
func (r *Repository) FindAnalysis(ctx context.Context, requestID, userID string) (*AnalysisRecord, error) {
	var record AnalysisRecord
	err := r.executeWithRetry(ctx, "repository.find_analysis", requestID, func() error {
		return r.db.WithContext(ctx).First(&record, "request_id = ? AND user_id = ?", requestID, userID).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindLatestAnalysisByHash returns the user's newest analysis of identical image bytes.
func (r *Repository) FindLatestAnalysisByHash(ctx context.Context, userID, hash string) (*AnalysisRecord, error) {
	var record AnalysisRecord
	err := r.executeWithRetry(ctx, "repository.find_analysis_by_hash", hash, func() error {
		return r.db.WithContext(ctx).
			Where("user_id = ? AND sha1_hash = ?", userID, hash).
			Order("created_at desc").
			First(&record).Error
	})
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// AnalysisAggregation holds raw counters over persisted analyses.
type AnalysisAggregation struct {
	TotalCount int64
	AICount    int64
}

// AggregateAnalyses counts analyses and AI verdicts.
func (r *Repository) AggregateAnalyses(ctx context.Context) (*AnalysisAggregation, error) {
	var agg AnalysisAggregation
	err := r.executeWithRetry(ctx, "repository.aggregate_analyses", "", func() error {
		return r.db.WithContext(ctx).
			Model(&AnalysisRecord{}).
			Select("COUNT(*) AS total_count, COALESCE(SUM(CASE WHEN is_ai THEN 1 ELSE 0 END), 0) AS ai_count").
			Scan(&agg).Error
	})
	if err != nil {
		return nil, err
	}
	return &agg, nil
}
