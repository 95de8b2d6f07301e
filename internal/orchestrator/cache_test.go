package orchestrator

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zumagro/soil-nutrient-service/internal/domain"
)

func resultFor(field string) domain.FallbackResult {
	return domain.FallbackResult{Success: true, FieldID: field, Source: "sentinel2-l2a"}
}

func TestCache_PutGet(t *testing.T) {
	c := NewCache(10, time.Hour)
	c.Put("a", resultFor("f1"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "f1", got.FieldID)

	_, ok = c.Get("b")
	assert.False(t, ok)
}

func TestCache_TTLExpiry(t *testing.T) {
	fake := clockwork.NewFakeClockAt(time.Date(2024, 10, 12, 8, 0, 0, 0, time.UTC))
	domain.SetClock(fake)
	t.Cleanup(func() { domain.SetClock(nil) })

	c := NewCache(10, 6*time.Hour)
	c.Put("a", resultFor("f1"))

	fake.Advance(5 * time.Hour)
	_, ok := c.Get("a")
	assert.True(t, ok)

	fake.Advance(2 * time.Hour)
	_, ok = c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestCache_LRUEviction(t *testing.T) {
	c := NewCache(2, time.Hour)
	c.Put("a", resultFor("f1"))
	c.Put("b", resultFor("f2"))

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("c", resultFor("f3"))
	assert.Equal(t, 2, c.Len())

	_, ok = c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
}

func TestCache_PutUpdatesExisting(t *testing.T) {
	c := NewCache(2, time.Hour)
	c.Put("a", resultFor("f1"))
	c.Put("a", resultFor("f1-updated"))

	got, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, "f1-updated", got.FieldID)
	assert.Equal(t, 1, c.Len())
}

func TestCacheKey_RoundsCoordinates(t *testing.T) {
	end := time.Date(2024, 10, 1, 13, 45, 0, 0, time.UTC)

	k1 := CacheKey(20.160004, 81.250004, end, domain.CropRice)
	k2 := CacheKey(20.159996, 81.249996, end, domain.CropRice)
	assert.Equal(t, k1, k2)

	k3 := CacheKey(20.161, 81.25, end, domain.CropRice)
	assert.NotEqual(t, k1, k3)

	k4 := CacheKey(20.16, 81.25, end, domain.CropWheat)
	assert.NotEqual(t, k1, k4)

	k5 := CacheKey(20.16, 81.25, end.AddDate(0, 0, 1), domain.CropRice)
	assert.NotEqual(t, k1, k5)
}
