package migrate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionsAreOrdered(t *testing.T) {
	files, err := Versions()
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_simulations.sql", "0002_simulation_outbox.sql"}, files)
}

func TestMigrationsDeclareInvariants(t *testing.T) {
	body, err := migrationsFS.ReadFile("migrations/0001_simulations.sql")
	require.NoError(t, err)
	assert.Contains(t, string(body), "simulations_status_check")
	assert.Contains(t, string(body), "simulations_result_done_check")
}
