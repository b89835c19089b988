// Package leadflow owns the lead lifecycle: the category state machine and
// the provisioning of a customer account when a lead converts.
package leadflow

import (
	"errors"

	"github.com/leadstack/go-crm-system/shared/models"
)

var (
	// ErrInvalidTransition is returned when a category change is not in the
	// allowed set for the lead's current category.
	ErrInvalidTransition = errors.New("invalid lead category transition")
	// ErrInvalidInitialState is returned when a brand-new lead is created
	// directly in the Converted category.
	ErrInvalidInitialState = errors.New("lead cannot be created as converted")
	// ErrConcurrentModification is returned when a competing transition
	// committed first. The caller decides whether to retry.
	ErrConcurrentModification = errors.New("lead was modified concurrently")
)

// transitions maps each category to the set of categories it may move to.
// Converted is terminal. Unconverted is also terminal: archived leads are
// never reopened.
var transitions = map[models.LeadCategory][]models.LeadCategory{
	models.CategoryNew:       {models.CategoryContacted, models.CategoryUnconverted},
	models.CategoryContacted: {models.CategoryConverted, models.CategoryUnconverted},
}

// AllowedTargets returns the categories a lead in the given category may
// transition to. The slice is a copy and safe to modify.
func AllowedTargets(from models.LeadCategory) []models.LeadCategory {
	targets := transitions[from]
	out := make([]models.LeadCategory, len(targets))
	copy(out, targets)
	return out
}

// CanTransition reports whether from may change to to. Setting the current
// category again is always a permitted no-op.
func CanTransition(from, to models.LeadCategory) bool {
	if from == to {
		return true
	}
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns ErrInvalidTransition when the change is not
// allowed by the transition table.
func ValidateTransition(from, to models.LeadCategory) error {
	if !to.Valid() {
		return ErrInvalidTransition
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	return nil
}

// ValidateInitial checks the category of a lead that has never been
// persisted. Any category except Converted is acceptable at creation.
func ValidateInitial(category models.LeadCategory) error {
	if !category.Valid() {
		return ErrInvalidInitialState
	}
	if category == models.CategoryConverted {
		return ErrInvalidInitialState
	}
	return nil
}
