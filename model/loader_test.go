package model

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFirstFallsThroughToBuilder(t *testing.T) {
	missing := FileStrategy{
		Path:       filepath.Join(t.TempDir(), "nope.json"),
		ModelName:  "m",
		Family:     FamilyGeneric,
		InputShape: []int{1, 1, 4, 4},
	}
	builder := BuilderStrategy{
		StrategyName: "embedded",
		Build:        func() (*Model, error) { return New("fallback", FamilyGeneric, []int{1, 1, 4, 4}) },
	}

	m, idx, err := LoadFirst(missing, builder)
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	assert.Equal(t, "fallback", m.Name())
}

func TestLoadFirstPrefersEarlierStrategy(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, os.WriteFile(path, []byte(sampleDescriptors), 0o644))

	file := FileStrategy{
		Path:       path,
		ModelName:  "from-file",
		Family:     FamilyMobileNet,
		InputShape: []int{1, 3, 8, 8},
	}
	builder := BuilderStrategy{
		StrategyName: "embedded",
		Build:        func() (*Model, error) { return New("fallback", FamilyGeneric, []int{1, 1, 4, 4}) },
	}

	m, idx, err := LoadFirst(file, builder)
	require.NoError(t, err)
	assert.Equal(t, 0, idx)
	assert.Equal(t, "from-file", m.Name())
}

func TestLoadFirstReportsAllFailures(t *testing.T) {
	broken := BuilderStrategy{
		StrategyName: "broken",
		Build:        func() (*Model, error) { return nil, fmt.Errorf("boom") },
	}

	_, idx, err := LoadFirst(broken, broken)
	assert.ErrorIs(t, err, ErrModelUnavailable)
	assert.Equal(t, -1, idx)
	assert.Contains(t, err.Error(), "boom")

	_, _, err = LoadFirst()
	assert.ErrorIs(t, err, ErrModelUnavailable)
}
