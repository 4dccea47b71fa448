package oci

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushRequiresTag(t *testing.T) {
	_, err := Push(context.Background(), PushOptions{
		SourceDir:  t.TempDir(),
		Registry:   "localhost:5000",
		Repository: "captures",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag is required")
}

func TestPushRejectsInvalidReference(t *testing.T) {
	_, err := Push(context.Background(), PushOptions{
		SourceDir:  t.TempDir(),
		Registry:   "registry",
		Repository: "UPPERCASE/Not Allowed",
		Tag:        "run-1",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid image reference")
}

func TestCreateAuthClient(t *testing.T) {
	c := createAuthClient(false, true)
	require.NotNil(t, c)
	assert.NotNil(t, c.Cache)

	plain := createAuthClient(true, false)
	require.NotNil(t, plain)
}
