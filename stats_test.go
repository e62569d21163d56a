package netplay

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsRecordAndQuery(t *testing.T) {
	db, err := OpenStats(":memory:")
	require.NoError(t, err)
	defer db.Close()

	session := uuid.New()
	require.NoError(t, db.RecordKill("kit", "rowan", session))
	require.NoError(t, db.RecordKill("kit", "rowan", session))
	require.NoError(t, db.RecordKill("rowan", "kit", session))

	kills, deaths, err := db.PlayerStats("kit")
	require.NoError(t, err)
	assert.Equal(t, uint16(2), kills)
	assert.Equal(t, uint16(1), deaths)

	kills, deaths, err = db.PlayerStats("rowan")
	require.NoError(t, err)
	assert.Equal(t, uint16(1), kills)
	assert.Equal(t, uint16(2), deaths)
}

func TestStatsUnknownPlayerIsZero(t *testing.T) {
	db, err := OpenStats(":memory:")
	require.NoError(t, err)
	defer db.Close()

	kills, deaths, err := db.PlayerStats("nobody")
	require.NoError(t, err)
	assert.Zero(t, kills)
	assert.Zero(t, deaths)
}
