package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckDiskSpace_PassesWithLowThreshold(t *testing.T) {
	dir := t.TempDir()

	report, err := CheckDiskSpace(dir, 1)

	require.NoError(t, err)
	assert.Equal(t, dir, report.Path)
	assert.Greater(t, report.TotalBytes, uint64(0))
}

func TestCheckDiskSpace_FailsWithImpossibleThreshold(t *testing.T) {
	dir := t.TempDir()

	_, err := CheckDiskSpace(dir, 1<<62)

	assert.Error(t, err)
}
