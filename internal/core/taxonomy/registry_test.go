package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubtypeListSizes(t *testing.T) {
	assert.Len(t, Subtypes(LevelAssociation, AnswerNo), 10)
	assert.Len(t, Subtypes(LevelAssociation, AnswerYes), 8)
	assert.Len(t, Subtypes(LevelAssociation, AnswerAmbiguous), 4)
	assert.NotEmpty(t, Subtypes(LevelIntervention, AnswerNo))
}

func TestEveryCellIsNonEmpty(t *testing.T) {
	for _, level := range Levels() {
		for _, answer := range AnswerTypes(level) {
			assert.NotEmpty(t, Subtypes(level, answer), "empty cell %s/%s", level, answer)
		}
	}
}

func TestCounterfactualFamilyFiltering(t *testing.T) {
	for _, answer := range AnswerTypes(LevelCounterfactual) {
		for _, family := range Subtypes(LevelCounterfactual, answer) {
			require.Contains(t, FamilyAnswers(family), answer)
		}
	}

	// FRAGILE_CHAIN only supports CONDITIONAL and must never be drawn for
	// VALID or INVALID.
	assert.NotContains(t, Subtypes(LevelCounterfactual, AnswerValid), "CF:FRAGILE_CHAIN")
	assert.NotContains(t, Subtypes(LevelCounterfactual, AnswerInvalid), "CF:FRAGILE_CHAIN")
	assert.Contains(t, Subtypes(LevelCounterfactual, AnswerConditional), "CF:FRAGILE_CHAIN")
}

func TestInterventionHasSingleAnswerType(t *testing.T) {
	require.Equal(t, []string{AnswerNo}, AnswerTypes(LevelIntervention))
}

func TestFamilyAnswersUnknownFamily(t *testing.T) {
	assert.Nil(t, FamilyAnswers("CF:NOT_A_FAMILY"))
}

func TestSubdomainsStableOrder(t *testing.T) {
	first := Subdomains()
	second := Subdomains()
	require.Equal(t, first, second)
	assert.Equal(t, "Equities", first[0])
}
