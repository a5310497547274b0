package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeSettings(t *testing.T) {
	s := DecodeSettings("ACG")
	assert.Equal(t, "ACG", s.Raw)
	assert.Equal(t, []string{"Paid Parking", "Suburbia", "Temple"}, s.Rotation)
	assert.Equal(t, byte('A'), s.FirstMapCode())
}

func TestDecodeSettingsKeepsUnknownCodes(t *testing.T) {
	// The string is stored as the client sent it; codes this build does
	// not know are just absent from the rotation.
	s := DecodeSettings("AXB")
	assert.Equal(t, "AXB", s.Raw)
	assert.Equal(t, []string{"Paid Parking", "Shady Warehouse"}, s.Rotation)

	s = DecodeSettings("")
	assert.Equal(t, "", s.Raw)
	assert.Empty(t, s.Rotation)
	assert.Equal(t, byte(0), s.FirstMapCode())
}

func TestMapName(t *testing.T) {
	assert.Equal(t, "Shady Warehouse", MapName('B'))
	assert.Equal(t, "The Woods", MapName('D'))
	assert.Empty(t, MapName('Z'))
}
