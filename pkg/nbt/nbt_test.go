package nbt_test

import (
	"bytes"
	"testing"

	"github.com/lodestone-mc/lodestone/pkg/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, name string, root nbt.Compound) (string, nbt.Compound) {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, nbt.EncodeNamed(&buf, name, root))

	gotName, got, err := nbt.DecodeNamed(&buf)
	require.NoError(t, err)
	return gotName, got
}

func TestRoundTripLevelData(t *testing.T) {
	root := nbt.Compound{
		"Data": nbt.Compound{
			"LastPlayed": int64(1717171717000),
			"LevelName":  "Skyblock",
			"hardcore":   int8(0),
		},
	}

	name, got := roundTrip(t, "", root)
	assert.Equal(t, "", name)

	data, ok := got.Compound("Data")
	require.True(t, ok)

	lastPlayed, ok := data.Int64("LastPlayed")
	require.True(t, ok)
	assert.Equal(t, int64(1717171717000), lastPlayed)

	levelName, ok := data.String("LevelName")
	require.True(t, ok)
	assert.Equal(t, "Skyblock", levelName)
}

func TestRoundTripServerList(t *testing.T) {
	root := nbt.Compound{
		"servers": nbt.List{
			ElementType: nbt.TagCompound,
			Items: []any{
				nbt.Compound{"name": "Home", "ip": "localhost:25565"},
				nbt.Compound{"name": "Hidden", "ip": "10.0.0.2", "hidden": int8(1)},
			},
		},
	}

	_, got := roundTrip(t, "", root)

	servers, ok := got.List("servers", nbt.TagCompound)
	require.True(t, ok)
	require.Len(t, servers.Items, 2)

	first := servers.Items[0].(nbt.Compound)
	ip, ok := first.String("ip")
	require.True(t, ok)
	assert.Equal(t, "localhost:25565", ip)

	second := servers.Items[1].(nbt.Compound)
	hidden, ok := second.Byte("hidden")
	require.True(t, ok)
	assert.Equal(t, int8(1), hidden)
}

func TestInt64AcceptsNarrowerTypes(t *testing.T) {
	c := nbt.Compound{
		"b": int8(3),
		"s": int16(-4),
		"i": int32(70000),
		"f": float32(1.5),
	}

	for name, want := range map[string]int64{"b": 3, "s": -4, "i": 70000} {
		got, ok := c.Int64(name)
		require.True(t, ok, name)
		assert.Equal(t, want, got)
	}

	_, ok := c.Int64("f")
	assert.False(t, ok, "floats are not integral")
	_, ok = c.Int64("missing")
	assert.False(t, ok)
}

func TestDecodeRejectsNonCompoundRoot(t *testing.T) {
	// TAG_String root with empty name.
	raw := []byte{8, 0, 0, 0, 2, 'h', 'i'}
	_, _, err := nbt.DecodeNamed(bytes.NewReader(raw))
	assert.Error(t, err)
}

func TestDecodeRejectsNegativeLength(t *testing.T) {
	// Compound containing a byte array named "x" with length -1.
	bad := []byte{10, 0, 0, 7, 0, 1, 'x', 0xFF, 0xFF, 0xFF, 0xFF, 0}
	_, _, err := nbt.DecodeNamed(bytes.NewReader(bad))
	assert.Error(t, err)
}
