package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phleudt/mailscheduler/internal/plan"
	"github.com/phleudt/mailscheduler/internal/types"
)

func step(n, wait int) *types.FollowUpStep {
	return &types.FollowUpStep{StepNumber: n, WaitDays: wait, TemplateID: "t"}
}

func TestNew(t *testing.T) {
	t.Parallel()

	p := &types.FollowUpPlan{ID: "p1", Name: "default"}

	t.Run("contiguous sequence accepted", func(t *testing.T) {
		e, err := plan.New(p, []*types.FollowUpStep{step(1, 3), step(2, 5), step(3, 7)})
		require.NoError(t, err)
		assert.Equal(t, 3, e.FollowUpCount())
	})

	t.Run("steps sorted regardless of input order", func(t *testing.T) {
		e, err := plan.New(p, []*types.FollowUpStep{step(3, 7), step(1, 3), step(2, 5)})
		require.NoError(t, err)
		steps := e.Steps()
		require.Len(t, steps, 3)
		assert.Equal(t, 1, steps[0].StepNumber)
		assert.Equal(t, 3, steps[2].StepNumber)
	})

	t.Run("gap rejected", func(t *testing.T) {
		_, err := plan.New(p, []*types.FollowUpStep{step(1, 3), step(3, 7)})
		require.Error(t, err)
		assert.ErrorIs(t, err, plan.ErrBrokenSequence)
	})

	t.Run("sequence not starting at one rejected", func(t *testing.T) {
		_, err := plan.New(p, []*types.FollowUpStep{step(2, 3)})
		assert.ErrorIs(t, err, plan.ErrBrokenSequence)
	})

	t.Run("duplicate step number rejected", func(t *testing.T) {
		_, err := plan.New(p, []*types.FollowUpStep{step(1, 3), step(1, 5)})
		assert.ErrorIs(t, err, plan.ErrBrokenSequence)
	})

	t.Run("negative wait rejected", func(t *testing.T) {
		_, err := plan.New(p, []*types.FollowUpStep{step(1, -1)})
		require.Error(t, err)
		assert.NotErrorIs(t, err, plan.ErrBrokenSequence)
	})

	t.Run("empty plan accepted", func(t *testing.T) {
		e, err := plan.New(p, nil)
		require.NoError(t, err)
		assert.Zero(t, e.FollowUpCount())
	})
}

func TestNextStep(t *testing.T) {
	t.Parallel()

	e, err := plan.New(&types.FollowUpPlan{ID: "p1"}, []*types.FollowUpStep{
		step(1, 3), step(2, 5), step(3, 7),
	})
	require.NoError(t, err)

	t.Run("after zero returns first", func(t *testing.T) {
		s := e.NextStep(0)
		require.NotNil(t, s)
		assert.Equal(t, 1, s.StepNumber)
	})

	t.Run("after middle returns next", func(t *testing.T) {
		s := e.NextStep(2)
		require.NotNil(t, s)
		assert.Equal(t, 3, s.StepNumber)
	})

	t.Run("exhausted returns nil", func(t *testing.T) {
		assert.Nil(t, e.NextStep(3))
	})
}

func TestStep(t *testing.T) {
	t.Parallel()

	e, err := plan.New(&types.FollowUpPlan{ID: "p1"}, []*types.FollowUpStep{step(1, 3), step(2, 5)})
	require.NoError(t, err)

	assert.Equal(t, 5, e.Step(2).WaitDays)
	assert.Nil(t, e.Step(0))
	assert.Nil(t, e.Step(3))
}
