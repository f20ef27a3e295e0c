package factory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/askql-io/askql"
)

type noopIntent struct{}

func (noopIntent) ProposePlan(context.Context, string, []askql.TableEntry) ([]byte, error) {
	return []byte(`{"intent": "select"}`), nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(context.Context, string) (*askql.ResultSet, error) {
	return &askql.ResultSet{}, nil
}

func (noopExecutor) Explain(context.Context, string) (string, error) {
	return "{}", nil
}

func TestNewPlannerRequiresCollaborators(t *testing.T) {
	cfg := askql.DefaultConfig()
	cfg.Cache.Enabled = false
	registry := askql.NewMemoryRegistry()

	tests := []struct {
		name string
		deps Dependencies
	}{
		{"missing registry", Dependencies{Intent: noopIntent{}, Executor: noopExecutor{}}},
		{"missing intent", Dependencies{Registry: registry, Executor: noopExecutor{}}},
		{"missing executor", Dependencies{Registry: registry, Intent: noopIntent{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlannerWithConfig(cfg, nil, tt.deps)
			require.Error(t, err)
		})
	}
}

func TestNewPlannerWithoutPool(t *testing.T) {
	cfg := askql.DefaultConfig()
	registry := askql.NewMemoryRegistry()
	registry.Register("orders", "ds_1_orders", []string{"id"}, "")

	planner, err := NewPlannerWithConfig(cfg, nil, Dependencies{
		Registry: registry,
		Intent:   noopIntent{},
		Executor: noopExecutor{},
	})
	require.NoError(t, err)
	assert.NotNil(t, planner, "a nil pool disables the cache but not the pipeline")
}

func TestNewPlannerRejectsInvalidConfig(t *testing.T) {
	cfg := askql.DefaultConfig()
	cfg.Query.DefaultLimit = 0

	_, err := NewPlannerWithConfig(cfg, nil, Dependencies{
		Registry: askql.NewMemoryRegistry(),
		Intent:   noopIntent{},
		Executor: noopExecutor{},
	})
	require.Error(t, err)
}
