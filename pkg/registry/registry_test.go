package registry

import (
	"os"
	"path/filepath"
	"testing"

	"foundation-review/internal/common/validation"
	castvote "foundation-review/internal/workers/review/cast-vote"
	recorddecision "foundation-review/internal/workers/review/record-decision"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReview_SchemasCompile(t *testing.T) {
	for _, a := range Review().Activities {
		t.Run(a.ID, func(t *testing.T) {
			_, err := validation.NewValidator(a.InputSchema)
			require.NoError(t, err)
			_, err = validation.NewValidator(a.OutputSchema)
			require.NoError(t, err)
			assert.NotEmpty(t, a.ErrorCodes)
			for _, code := range a.ErrorCodes {
				assert.NotEmpty(t, code)
			}
		})
	}
}

func TestReview_CastVoteInputSchema(t *testing.T) {
	a, ok := Review().Find(castvote.TaskType)
	require.True(t, ok)
	v, err := validation.NewValidator(a.InputSchema)
	require.NoError(t, err)

	res, err := v.Validate(castvote.Input{
		ApplicationID:   "app-1",
		VoterID:         "board-1",
		Decision:        "Approve",
		Reasoning:       "Sound plan.",
		ConfidenceLevel: 4,
	})
	require.NoError(t, err)
	assert.True(t, res.Valid, res.GetErrorMessages())

	res, err = v.Validate(castvote.Input{ApplicationID: "app-1", VoterID: "board-1", Decision: "Maybe", ConfidenceLevel: 9})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.True(t, res.HasErrors("decision"))
	assert.True(t, res.HasErrors("confidenceLevel"))
}

func TestFind_Unknown(t *testing.T) {
	_, ok := Review().Find("send-newsletter")
	assert.False(t, ok)
}

func TestLoadRegistry_ReadsWrittenRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "activities.json")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, Write(f, Review()))
	require.NoError(t, f.Close())

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, Version, reg.Version)
	a, ok := reg.Find(recorddecision.TaskType)
	require.True(t, ok)
	assert.Equal(t, "record-decision", a.ID)
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
