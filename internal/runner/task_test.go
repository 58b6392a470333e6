package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type namedTask struct {
	name string
	ran  int
}

func (t *namedTask) Name() string           { return t.name }
func (t *namedTask) Schedule() string       { return "* * * * * *" }
func (t *namedTask) Timeout() time.Duration { return time.Second }
func (t *namedTask) Run(context.Context) error {
	t.ran++
	return nil
}

func TestTaskRegistry(t *testing.T) {
	registry := NewTaskRegistry()
	require.Empty(t, registry.All())

	first := &namedTask{name: "mail-fetch"}
	registry.Register(first)

	got, ok := registry.Get("mail-fetch")
	require.True(t, ok)
	require.Same(t, Task(first), got)

	_, ok = registry.Get("unknown")
	require.False(t, ok)

	// Re-registering under the same name replaces the task.
	second := &namedTask{name: "mail-fetch"}
	registry.Register(second)
	got, _ = registry.Get("mail-fetch")
	require.Same(t, Task(second), got)
	require.Len(t, registry.All(), 1)
}
