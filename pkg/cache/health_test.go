package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gilby125/flightcrawler/core"
)

func TestHealthCache_SetGet(t *testing.T) {
	hc := NewHealthCache(50 * time.Millisecond)

	_, ok := hc.Get(core.SourceKiwiAPI)
	assert.False(t, ok, "unset source should miss")

	hc.Set(core.SourceKiwiAPI, true)
	healthy, ok := hc.Get(core.SourceKiwiAPI)
	assert.True(t, ok)
	assert.True(t, healthy)

	hc.Set(core.SourceGDS, false)
	healthy, ok = hc.Get(core.SourceGDS)
	assert.True(t, ok)
	assert.False(t, healthy)
}

func TestHealthCache_ExpiresAfterTTL(t *testing.T) {
	hc := NewHealthCache(10 * time.Millisecond)
	hc.Set(core.SourceDirectCrawl, true)

	time.Sleep(40 * time.Millisecond)

	_, ok := hc.Get(core.SourceDirectCrawl)
	assert.False(t, ok, "entry should have expired")
}

func TestSourceHealthKey(t *testing.T) {
	assert.Equal(t, "source_health:KIWI_API", SourceHealthKey(core.SourceKiwiAPI))
}
