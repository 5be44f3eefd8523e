package job

import (
	"encoding/json"
	"fmt"

	"github.com/siqueira-campos/imoveis-jobs/internal/domain/model"
)

// CacheKey derives the memoization key for a job, or "" when the job type is
// not cacheable. Keys are built from business identity, not job id, so two
// jobs requesting the same document share one cache entry.
//
// Only spec sheet generation is cacheable today; emails are side effects and
// must run every time.
func CacheKey(jobType model.JobType, payload json.RawMessage) (string, error) {
	if jobType != model.JobTypePDFSpecSheet {
		return "", nil
	}

	p, err := model.DecodeSpecSheetPayload(payload)
	if err != nil {
		return "", fmt.Errorf("derive cache key: %w", err)
	}
	return SpecSheetCacheKey(p.PropertyID), nil
}

// SpecSheetCacheKey returns the cache key for a property spec sheet.
func SpecSheetCacheKey(propertyID string) string {
	return "spec_sheet_" + propertyID
}
