package analysis

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/avelichko/manager-pulse/internal/store"
)

const (
	analysisTypePromises = "promises"
	analysisTypeQuality  = "quality"
)

// ConversationAnalyzer runs the LLM checks for a conversation, caching
// results in SQLite keyed by transcript content so re-runs over unchanged
// history cost no tokens.
type ConversationAnalyzer struct {
	client *Client
	store  *store.Store
}

// NewConversationAnalyzer creates a new ConversationAnalyzer.
func NewConversationAnalyzer(client *Client, s *store.Store) *ConversationAnalyzer {
	return &ConversationAnalyzer{
		client: client,
		store:  s,
	}
}

// CheckUnfinishedPromises runs the promise check for a dialog's transcript.
// Query errors propagate to the caller; nothing is cached on failure.
func (a *ConversationAnalyzer) CheckUnfinishedPromises(ctx context.Context, dialogID int64, transcript string) (bool, error) {
	cacheKey := buildCacheKey(dialogID, analysisTypePromises, hashContent(transcript))

	cached, err := a.store.GetAnalysisCache(cacheKey)
	if err == nil && cached != nil {
		return cached.Result == "true", nil
	}
	if err != nil && err != sql.ErrNoRows {
		return false, fmt.Errorf("checking analysis cache: %w", err)
	}

	flagged, err := a.client.CheckUnfinishedPromises(ctx, transcript)
	if err != nil {
		return false, err
	}

	if cacheErr := a.store.PutAnalysisCache(&store.AnalysisCache{
		CacheKey:     cacheKey,
		DialogID:     dialogID,
		AnalysisType: analysisTypePromises,
		PromptHash:   hashContent(promisePromptTemplate),
		Result:       strconv.FormatBool(flagged),
		Model:        a.client.ActiveModel(),
	}); cacheErr != nil {
		log.Printf("warning: caching promise result for dialog %d: %v", dialogID, cacheErr)
	}

	return flagged, nil
}

// AnalyzeQuality runs the quality analysis for a dialog's transcript. Like
// the underlying client method it never fails; degraded fallback records
// are returned to the caller but never cached.
func (a *ConversationAnalyzer) AnalyzeQuality(ctx context.Context, dialogID int64, transcript string) *QualityRecord {
	cacheKey := buildCacheKey(dialogID, analysisTypeQuality, hashContent(transcript))

	cached, err := a.store.GetAnalysisCache(cacheKey)
	if err == nil && cached != nil {
		var rec QualityRecord
		if jsonErr := json.Unmarshal([]byte(cached.Result), &rec); jsonErr == nil {
			return &rec
		}
		// Unreadable cache entry: fall through and recompute.
	}

	rec := a.client.AnalyzeConversationQuality(ctx, transcript)
	if rec.Degraded() {
		return rec
	}

	if data, jsonErr := json.Marshal(rec); jsonErr == nil {
		if cacheErr := a.store.PutAnalysisCache(&store.AnalysisCache{
			CacheKey:     cacheKey,
			DialogID:     dialogID,
			AnalysisType: analysisTypeQuality,
			PromptHash:   hashContent(qualityPromptTemplate),
			Result:       string(data),
			Model:        a.client.ActiveModel(),
		}); cacheErr != nil {
			log.Printf("warning: caching quality result for dialog %d: %v", dialogID, cacheErr)
		}
	}

	return rec
}

// hashContent returns the hex-encoded SHA-256 hash of the given string.
func hashContent(content string) string {
	h := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", h)
}

// buildCacheKey constructs a deterministic cache key from the given components.
func buildCacheKey(dialogID int64, analysisType, contentHash string) string {
	return hashContent(fmt.Sprintf("%d|%s|%s", dialogID, analysisType, contentHash))
}
