package database

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationsEmbedded(t *testing.T) {
	all, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)

	assert.Equal(t, "001_sessions", all[0].Version)
	assert.True(t, strings.Contains(all[0].SQL, "interview_sessions"))
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
}

func TestPending(t *testing.T) {
	all := []Migration{{Version: "001_a"}, {Version: "002_b"}, {Version: "003_c"}}

	got := Pending(all, map[string]bool{"002_b": true})
	require.Len(t, got, 2)
	assert.Equal(t, "001_a", got[0].Version)
	assert.Equal(t, "003_c", got[1].Version)

	assert.Empty(t, Pending(all, map[string]bool{"001_a": true, "002_b": true, "003_c": true}))
	assert.Len(t, Pending(all, nil), 3)
}
