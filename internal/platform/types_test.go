package platform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSteamIDFields(t *testing.T) {
	individual := SteamID(0x0110000100000001)
	clan := SteamID(0x0170000000000001)

	assert.True(t, individual.IsIndividual())
	assert.False(t, individual.IsClan())
	assert.Equal(t, uint32(1), individual.AccountID())

	assert.True(t, clan.IsClan())
	assert.False(t, clan.IsIndividual())

	assert.False(t, SteamID(0).IsValid())
	assert.True(t, individual.IsValid())
}

func TestEResultString(t *testing.T) {
	assert.Equal(t, "OK", ResultOK.String())
	assert.Equal(t, "TryAnotherCM", ResultTryAnotherCM.String())
	assert.Equal(t, "EResult(9999)", EResult(9999).String())
}
