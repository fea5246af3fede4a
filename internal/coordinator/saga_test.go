package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clickmarket/marketplace/internal/coordinator/sagalog"
)

type fakeStep struct {
	name     string
	failExec error
	failComp error
	trail    *[]string
}

func (s *fakeStep) Name() string { return s.name }

func (s *fakeStep) Execute(context.Context) error {
	*s.trail = append(*s.trail, "exec:"+s.name)
	return s.failExec
}

func (s *fakeStep) Compensate(context.Context) error {
	*s.trail = append(*s.trail, "comp:"+s.name)
	return s.failComp
}

func statuses(entries []*sagalog.SagaLog) []sagalog.Status {
	out := make([]sagalog.Status, len(entries))
	for i, e := range entries {
		out[i] = e.Status
	}
	return out
}

func TestOrchestratorCompletes(t *testing.T) {
	ctx := context.Background()
	repo := sagalog.NewMemoryRepository()
	var trail []string

	o := NewOrchestrator("checkout", "order-1", []Step{
		&fakeStep{name: "a", trail: &trail},
		&fakeStep{name: "b", trail: &trail},
	}, repo)
	require.NoError(t, o.Start(ctx, `{"k":"v"}`))

	assert.Equal(t, []string{"exec:a", "exec:b"}, trail)
	history, err := repo.History(ctx, "order-1")
	require.NoError(t, err)
	assert.Equal(t, []sagalog.Status{
		sagalog.StatusStarted, sagalog.StatusStepDone, sagalog.StatusStepDone, sagalog.StatusCompleted,
	}, statuses(history))
	assert.Equal(t, `{"k":"v"}`, history[0].Payload)
	assert.Equal(t, "checkout", history[0].Saga)
}

func TestOrchestratorCompensatesInReverse(t *testing.T) {
	ctx := context.Background()
	repo := sagalog.NewMemoryRepository()
	var trail []string
	boom := errors.New("boom")

	o := NewOrchestrator("settlement", "order-2", []Step{
		&fakeStep{name: "a", trail: &trail},
		&fakeStep{name: "b", trail: &trail, failComp: errors.New("stuck")},
		&fakeStep{name: "c", trail: &trail, failExec: boom},
	}, repo)
	err := o.Start(ctx, "")
	require.ErrorIs(t, err, boom)

	assert.Equal(t, []string{"exec:a", "exec:b", "exec:c", "comp:b", "comp:a"}, trail)

	last, err := sagalog.Latest(ctx, repo, "order-2")
	require.NoError(t, err)
	assert.Equal(t, sagalog.StatusFailed, last.Status)
	assert.Equal(t, "c", last.CurrentStep)

	var msgs []string
	require.NoError(t, json.Unmarshal([]byte(last.ErrorMessages), &msgs))
	assert.Equal(t, []string{"c failed: boom", "compensation of b failed: stuck"}, msgs)
}

func TestOrchestratorWithoutLog(t *testing.T) {
	var trail []string
	o := NewOrchestrator("checkout", "order-3", []Step{&fakeStep{name: "a", trail: &trail}}, nil)
	assert.NoError(t, o.Start(context.Background(), ""))
}
