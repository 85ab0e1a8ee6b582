package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gilby125/flightcrawler/core"
)

func TestBuild_RegistersAllTrustCategories(t *testing.T) {
	adapters, err := Build(Credentials{
		KiwiAPIKey:              "test-key",
		AmadeusClientID:         "id",
		AmadeusClientSecret:     "secret",
		AmadeusHostname:         "test",
		LufthansaClientID:       "id",
		LufthansaClientSecret:   "secret",
		LufthansaHostname:       "api.lufthansa.com",
		SingaporeAirlinesAPIKey: "sq-key",
		L1Timeout:               10 * time.Second,
		L2Timeout:               15 * time.Second,
		L3Timeout:               30 * time.Second,
	})
	require.NoError(t, err)

	for _, source := range []core.DataSource{
		core.SourceKiwiAPI, core.SourceGDS, core.SourceGoogleProtobuf, core.SourceDirectCrawl,
	} {
		adapter, ok := adapters[source]
		require.True(t, ok, "missing adapter for %s", source)
		assert.Equal(t, source, adapter.Source())
	}
}
