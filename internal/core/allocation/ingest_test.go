package allocation

import (
	"testing"

	"causalgen-backend/internal/core/taxonomy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSeedBatchWithSurroundingProse(t *testing.T) {
	raw := `Sure! Here are the scenario seeds you asked for:

` + "```json" + `
[
  {"id": "s1", "topic": "rate hikes", "subdomain": "Banking",
   "entities": ["First Harbor Bank"], "timeframe": "2022",
   "event": "regional banks tightened lending after a rate hike"},
  {"topic": "grain futures", "subdomain": "Commodities",
   "event": "wheat futures spiked after an export ban"}
]
` + "```" + `

Let me know if you need more.`

	seeds, err := ParseSeedBatch(raw)
	require.NoError(t, err)
	require.Len(t, seeds, 2)

	assert.Equal(t, "s1", seeds[0].ID)
	assert.Equal(t, "Banking", seeds[0].Subdomain)

	// Missing fields are defaulted, never left loose.
	assert.Equal(t, "seed-1", seeds[1].ID)
	assert.Equal(t, []string{}, seeds[1].Entities)
}

func TestParseSeedBatchDefaultsSubdomain(t *testing.T) {
	seeds, err := ParseSeedBatch(`[{"id": "a", "event": "something happened"}]`)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, taxonomy.Subdomains()[0], seeds[0].Subdomain)
}

func TestParseSeedBatchNoArray(t *testing.T) {
	seeds, err := ParseSeedBatch("I could not produce any seeds, sorry.")
	assert.Error(t, err)
	assert.Empty(t, seeds)
}

func TestParseSeedBatchMalformedArray(t *testing.T) {
	seeds, err := ParseSeedBatch(`here you go [ {"id": "a", ] oops`)
	assert.Error(t, err)
	assert.Empty(t, seeds)
}

func TestParseSeedBatchBracketsInsideStrings(t *testing.T) {
	raw := `[{"id": "b1", "event": "index [rebalancing] day", "entities": ["Fund [A]"]}]`
	seeds, err := ParseSeedBatch(raw)
	require.NoError(t, err)
	require.Len(t, seeds, 1)
	assert.Equal(t, "index [rebalancing] day", seeds[0].Event)
}

func TestParseSeedBatchTrimsWhitespace(t *testing.T) {
	seeds, err := ParseSeedBatch(`[{"id": "  s9  ", "subdomain": " Energy ", "event": " x "}]`)
	require.NoError(t, err)
	assert.Equal(t, "s9", seeds[0].ID)
	assert.Equal(t, "Energy", seeds[0].Subdomain)
	assert.Equal(t, "x", seeds[0].Event)
}
