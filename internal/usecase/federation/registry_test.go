package federation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kailas-cloud/fedcat/internal/domain/source"
	"github.com/kailas-cloud/fedcat/internal/domain/source/sourcetest"
)

func ids(gs []source.Gateway) []string {
	out := make([]string, len(gs))
	for i, g := range gs {
		out[i] = g.ID()
	}
	return out
}

func TestNewRegistry_Validation(t *testing.T) {
	a := sourcetest.New("a")
	tests := []struct {
		name      string
		federated []source.Gateway
		connected []source.Gateway
		local     source.Gateway
	}{
		{"duplicate across lists", gateways(a), gateways(sourcetest.New("a")), nil},
		{"empty id", gateways(sourcetest.New("")), nil, nil},
		{"nil gateway", []source.Gateway{nil}, nil, nil},
		{"local clashes", gateways(a), nil, sourcetest.New("a")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewRegistry(tc.federated, tc.connected, tc.local)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_Order(t *testing.T) {
	f1, f2 := sourcetest.New("f1"), sourcetest.New("f2")
	c1 := sourcetest.New("c1")
	local := sourcetest.New("local")

	reg, err := NewRegistry(gateways(f1, f2), gateways(c1), local)
	require.NoError(t, err)

	assert.Equal(t, []string{"f1", "f2", "c1"}, ids(reg.FallbackOrder()))
	assert.Equal(t, []string{"f1", "f2", "c1", "local"}, ids(reg.All()))

	g, ok := reg.Lookup("local")
	require.True(t, ok)
	assert.Equal(t, "local", g.ID())

	_, ok = reg.Lookup("nope")
	assert.False(t, ok)
}

func TestRegistry_LocalAlsoFederated(t *testing.T) {
	local := sourcetest.New("local")
	reg, err := NewRegistry(gateways(local), nil, local)
	require.NoError(t, err)

	assert.Equal(t, []string{"local"}, ids(reg.All()))
	got, ok := reg.Local()
	require.True(t, ok)
	assert.Same(t, local, got)
}
