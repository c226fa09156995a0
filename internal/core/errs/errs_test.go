package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindFatality(t *testing.T) {
	assert.False(t, MalformedAction("x").Fatal)
	assert.False(t, UnsupportedAction("x").Fatal)
	assert.True(t, InvariantViolation("x").Fatal)
	assert.True(t, TargetNotFoundMarker(3).Fatal)
	assert.True(t, Scenario(errors.New("lua"), "reset").Fatal)
}

func TestErrorsIsThroughWrapping(t *testing.T) {
	err := fmt.Errorf("tick 4: %w", TargetNotFoundEntity(9))
	assert.ErrorIs(t, err, ErrTargetNotFound)
	assert.NotErrorIs(t, err, ErrScenario)

	var e *Error
	assert.True(t, errors.As(err, &e))
	assert.Equal(t, "target not found: entity 9", e.Error())
}

func TestScenarioUnwrap(t *testing.T) {
	cause := errors.New("attempt to index nil")
	err := Scenario(cause, "call reset")
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "scenario error: call reset: attempt to index nil", err.Error())
}
