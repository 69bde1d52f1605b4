package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSource struct {
	Source
	name string
}

func (s stubSource) Name() string { return s.name }

func TestRegistry(t *testing.T) {
	Register("example", `comics\.example\.org`, func() Source {
		return stubSource{name: "example"}
	})

	src, err := FromURL("https://comics.example.org/series/42")
	require.NoError(t, err)
	assert.Equal(t, "example", src.Name())

	_, err = FromURL("https://unknown.invalid/series/42")
	assert.ErrorIs(t, err, ErrInvalidURL)

	src, err = FromName("example")
	require.NoError(t, err)
	assert.Equal(t, "example", src.Name())

	_, err = FromName("nope")
	assert.ErrorIs(t, err, ErrInvalidURL)

	assert.Contains(t, Names(), "example")
}
