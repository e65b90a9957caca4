package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	require.Equal(t, "osakaoffice", NormalizeName("  Osaka  Office\n"))
	require.Equal(t, NormalizeName("Osaka Office"), NormalizeName("osaka  office"))
}

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("Clock In Time", []string{"time", "clock"}))
	require.True(t, MatchName("break_time", []string{"time"}))
	require.False(t, MatchName("project_code", []string{"time", "clock"}))
}
