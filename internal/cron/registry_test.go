package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "a"}
	jobB := &stubJob{name: "b"}
	assert.True(t, registry.Register(jobA))
	assert.True(t, registry.Register(jobB))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

func TestRegistryIgnoresNilAndDuplicates(t *testing.T) {
	registry := NewRegistry(nil, &stubJob{name: "a"})
	assert.False(t, registry.Register(&stubJob{name: "a"}))
	assert.False(t, registry.Register(nil))
	assert.Len(t, registry.Jobs(), 1)
}
