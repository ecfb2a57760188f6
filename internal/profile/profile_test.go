package profile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileNames(t *testing.T) {
	assert.Equal(t, "Solar_North_2024.json", FileName(Solar, "North", 2024))
	assert.Equal(t, "Wind_Panhandle_TMY.json", TMYFileName(Wind, "Panhandle"))
}

func TestParseTechnology(t *testing.T) {
	tech, err := ParseTechnology("wind")
	require.NoError(t, err)
	assert.Equal(t, Wind, tech)

	_, err = ParseTechnology("hydro")
	assert.Error(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName(Solar, "West", 2023))
	_, err := Save(path, Profile{0, 0.25, 1})
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[0,0.25,1]\n", string(raw))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Profile{0, 0.25, 1}, got)
}

func TestLoadRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"}`), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	leap := make(Profile, 8784)
	for i := range leap {
		leap[i] = float64(i)
	}
	cut := Truncate(leap)
	assert.Len(t, cut, HoursPerTypicalYear)
	assert.Equal(t, float64(8759), cut[len(cut)-1])

	short := make(Profile, 100)
	assert.Len(t, Truncate(short), 100)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0.0, Clamp(-0.1))
	assert.Equal(t, 1.0, Clamp(1.7))
	assert.Equal(t, 0.5, Clamp(0.5))
}

func TestParseFileName(t *testing.T) {
	n, ok := ParseFileName("/data/profiles/Solar_North_2024.json")
	require.True(t, ok)
	assert.Equal(t, Name{Technology: Solar, Hub: "North", Year: 2024}, n)
	assert.False(t, n.TMY())

	n, ok = ParseFileName("Wind_HB_PAN_TMY.json")
	require.True(t, ok)
	assert.Equal(t, "HB_PAN", n.Hub)
	assert.True(t, n.TMY())

	for _, bad := range []string{"ercot_2024_hubs.json", "Solar_North.json", "Solar_North_2024.parquet", "Hydro_North_2024.json", "Solar__2024.json"} {
		_, ok := ParseFileName(bad)
		assert.False(t, ok, bad)
	}
}
