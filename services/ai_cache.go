package services

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/maypok86/otter/v2"
)

// AICache keeps analyzer answers in memory so re-scanning the same photo or
// description does not spend another model call.
type AICache struct {
	cache *otter.Cache[string, NutritionEstimate]
}

func NewAICache(size int, ttl time.Duration) *AICache {
	return &AICache{
		cache: otter.Must(&otter.Options[string, NutritionEstimate]{
			MaximumSize:      size,
			ExpiryCalculator: otter.ExpiryWriting[string, NutritionEstimate](ttl),
		}),
	}
}

func (c *AICache) Get(key string) (*NutritionEstimate, bool) {
	est, ok := c.cache.GetIfPresent(key)
	if !ok {
		return nil, false
	}
	return &est, true
}

func (c *AICache) Set(key string, est *NutritionEstimate) {
	c.cache.Set(key, *est)
}

// analysisKey hashes model, normalised description and raw image bytes.
func analysisKey(model string, in AnalysisInput) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(strings.ToLower(strings.TrimSpace(in.Description))))
	h.Write([]byte{0})
	h.Write(in.Image)
	return hex.EncodeToString(h.Sum(nil))
}
