package analyze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRoutine struct {
	name     string
	exts     []string
	findings []Finding
	err      error
}

func (r fakeRoutine) Name() string          { return r.name }
func (r fakeRoutine) Extensions() []string  { return r.exts }
func (r fakeRoutine) Run(ctx context.Context, path string) ([]Finding, error) {
	return r.findings, r.err
}

func TestRegistry_RegisterAndResolve(t *testing.T) {
	reg := NewRegistry()
	reg.Register("fake", func() Routine { return fakeRoutine{name: "fake"} })

	routine, err := reg.Resolve("fake")
	require.NoError(t, err)
	assert.Equal(t, "fake", routine.Name())
}

func TestRegistry_UnknownName(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Resolve("ghost")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown routine "ghost"`)
}

func TestRegistry_ReplacesExisting(t *testing.T) {
	reg := NewRegistry()
	reg.Register("r", func() Routine { return fakeRoutine{name: "old"} })
	reg.Register("r", func() Routine { return fakeRoutine{name: "new"} })

	routine, err := reg.Resolve("r")
	require.NoError(t, err)
	assert.Equal(t, "new", routine.Name())
}

func TestRegistry_NamesSorted(t *testing.T) {
	reg := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		reg.Register(name, func() Routine { return fakeRoutine{} })
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, reg.Names())
}
