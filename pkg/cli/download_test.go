package cli

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadRejectsInvalidPushReference(t *testing.T) {
	err := downloadCmd().Run(context.Background(), []string{
		"download", "--push", "oci://not a valid ref!!",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid OCI reference")
}

func TestDownloadRejectsLocalPushTarget(t *testing.T) {
	err := downloadCmd().Run(context.Background(), []string{
		"download", "--push", "./results",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--push requires an oci://")
}
