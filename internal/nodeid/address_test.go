package nodeid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddress_String(t *testing.T) {
	testCases := []struct {
		name        string
		addr        Address
		expectedStr string
	}{
		{
			name:        "job without matrix",
			addr:        New("lint"),
			expectedStr: "lint",
		},
		{
			name:        "matrix instance",
			addr:        New("test", AxisValue{"os", "linux"}, AxisValue{"go", "1.22"}),
			expectedStr: "test[os=linux,go=1.22]",
		},
		{
			name:        "value needing quotes",
			addr:        New("build", AxisValue{"flags", "-tags a,b"}),
			expectedStr: `build[flags="-tags a,b"]`,
		},
		{
			name:        "empty value",
			addr:        New("build", AxisValue{"flags", ""}),
			expectedStr: `build[flags=""]`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expectedStr, tc.addr.String())
		})
	}
}

func TestAddress_RoundTrip(t *testing.T) {
	testIDs := []string{
		"lint",
		"test[os=linux,go=1.22]",
		"unit-tests[python=3.12]",
		`build[flags="-tags a,b",arch=amd64]`,
	}

	for _, id := range testIDs {
		t.Run(id, func(t *testing.T) {
			addr, err := Parse(id)
			require.NoError(t, err)

			roundTripID := addr.String()
			assert.Equal(t, id, roundTripID)

			roundTripAddr, err := Parse(roundTripID)
			require.NoError(t, err)
			assert.True(t, addr.Equal(roundTripAddr))
		})
	}
}

func TestAddress_Equal(t *testing.T) {
	addr1, _ := Parse("test[os=linux,go=1.22]")
	addr2, _ := Parse("test[os=linux,go=1.22]")
	addr3, _ := Parse("test[go=1.22,os=linux]")
	addr4, _ := Parse("test[os=mac,go=1.22]")
	addr5, _ := Parse("lint")

	assert.True(t, addr1.Equal(addr2))
	assert.False(t, addr1.Equal(addr3), "axis order is significant")
	assert.False(t, addr1.Equal(addr4))
	assert.False(t, addr1.Equal(addr5))
}

func TestAddress_Value(t *testing.T) {
	addr := New("test", AxisValue{"os", "linux"}, AxisValue{"experimental", "true"})

	v, ok := addr.Value("experimental")
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	_, ok = addr.Value("go")
	assert.False(t, ok)
	assert.Equal(t, map[string]string{"os": "linux", "experimental": "true"}, addr.Map())
}
