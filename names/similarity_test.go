package names

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "ИВАН ИВАНОВ", Normalize("  иван   Иванов "))
	assert.Equal(t, "СЕМЕН", Normalize("Семён"))
	assert.Equal(t, "", Normalize("   "))
}

func TestSimilarityIdenticalAfterNormalization(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("ИВАН ИВАНОВ", "Иван Иванов"))
	assert.Equal(t, 1.0, Similarity("Артём", "АРТЕМ"))
	assert.Equal(t, 1.0, Similarity("Иван  Иванов", "Иван Иванов"))
}

func TestSimilaritySwappedOrderDegrades(t *testing.T) {
	s := Similarity("Иванов Иван", "Иван Иванов")
	assert.Less(t, s, 1.0, "swapped word order must not score a full match")
}

func TestSimilarityCloseTokens(t *testing.T) {
	// One-letter OCR slip in a long surname still scores above the
	// match threshold.
	s := Similarity("ИВАНОВ ИВАН ИВАНОВИЧ", "ИВАН0В ИВАН ИВАНОВИЧ")
	assert.Greater(t, s, MatchThreshold)
	assert.Less(t, s, 1.0)
}

func TestSimilarityWeakTokenContributesNothing(t *testing.T) {
	// Completely different surname: that position contributes zero,
	// the remaining two of three tokens cap the score at 2/3.
	s := Similarity("ИВАНОВ ИВАН ИВАНОВИЧ", "СИДОРОВ ИВАН ИВАНОВИЧ")
	assert.InDelta(t, 2.0/3.0, s, 1e-9)
}

func TestSimilarityTokenCountMismatchFallsBack(t *testing.T) {
	s := Similarity("ИВАНОВ ИВАН ИВАНОВИЧ", "ИВАНОВ ИВАН")
	assert.Greater(t, s, 0.0)
	assert.Less(t, s, 1.0)
}

func TestSimilarityEmptyInput(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("", "ИВАНОВ"))
	assert.Equal(t, 0.0, Similarity("ИВАНОВ", "  "))
}

func TestMatchThreshold(t *testing.T) {
	assert.True(t, Match("Иванов Иван Иванович", "ИВАНОВ ИВАН ИВАНОВИЧ"))
	assert.False(t, Match("Иванов Иван Иванович", "Сидоров Пётр Петрович"))
}
