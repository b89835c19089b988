package leadflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/leadstack/go-crm-system/shared/models"
)

func TestCanTransition_AllowedMoves(t *testing.T) {
	assert.True(t, CanTransition(models.CategoryNew, models.CategoryContacted))
	assert.True(t, CanTransition(models.CategoryNew, models.CategoryUnconverted))
	assert.True(t, CanTransition(models.CategoryContacted, models.CategoryConverted))
	assert.True(t, CanTransition(models.CategoryContacted, models.CategoryUnconverted))
}

func TestCanTransition_ForbiddenMoves(t *testing.T) {
	// New leads must be contacted before converting.
	assert.False(t, CanTransition(models.CategoryNew, models.CategoryConverted))
	// No backward moves.
	assert.False(t, CanTransition(models.CategoryContacted, models.CategoryNew))
}

func TestCanTransition_TerminalStates(t *testing.T) {
	for _, target := range []models.LeadCategory{
		models.CategoryNew, models.CategoryContacted, models.CategoryUnconverted,
	} {
		assert.False(t, CanTransition(models.CategoryConverted, target),
			"converted lead must not move to %s", target)
		assert.False(t, CanTransition(models.CategoryUnconverted, target),
			"unconverted lead must not move to %s", target)
	}
}

func TestCanTransition_SameCategoryIsNoOp(t *testing.T) {
	for _, c := range []models.LeadCategory{
		models.CategoryNew, models.CategoryContacted,
		models.CategoryConverted, models.CategoryUnconverted,
	} {
		assert.True(t, CanTransition(c, c))
	}
}

func TestValidateTransition(t *testing.T) {
	assert.NoError(t, ValidateTransition(models.CategoryNew, models.CategoryContacted))

	err := ValidateTransition(models.CategoryNew, models.CategoryConverted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = ValidateTransition(models.CategoryConverted, models.CategoryContacted)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	// Unknown category codes are never a valid target.
	err = ValidateTransition(models.CategoryNew, models.LeadCategory(99))
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestValidateInitial(t *testing.T) {
	assert.NoError(t, ValidateInitial(models.CategoryNew))
	assert.NoError(t, ValidateInitial(models.CategoryContacted))
	assert.NoError(t, ValidateInitial(models.CategoryUnconverted))

	assert.ErrorIs(t, ValidateInitial(models.CategoryConverted), ErrInvalidInitialState)
	assert.ErrorIs(t, ValidateInitial(models.LeadCategory(0)), ErrInvalidInitialState)
}

func TestAllowedTargets_ReturnsCopy(t *testing.T) {
	targets := AllowedTargets(models.CategoryNew)
	assert.Len(t, targets, 2)

	targets[0] = models.CategoryConverted
	assert.False(t, CanTransition(models.CategoryNew, models.CategoryConverted))
}

func TestAllowedTargets_TerminalIsEmpty(t *testing.T) {
	assert.Empty(t, AllowedTargets(models.CategoryConverted))
	assert.Empty(t, AllowedTargets(models.CategoryUnconverted))
}

func TestDescribeTransitionError(t *testing.T) {
	msg := DescribeTransitionError(models.CategoryNew, models.CategoryConverted)
	assert.Contains(t, msg, "new")
	assert.Contains(t, msg, "contacted")

	msg = DescribeTransitionError(models.CategoryConverted, models.CategoryNew)
	assert.Contains(t, msg, "terminal")
}
