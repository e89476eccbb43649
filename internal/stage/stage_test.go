package stage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseStages(t *testing.T) {
	tests := []struct {
		input string
		want  []Stage
	}{
		{"", AllStages},
		{"all", AllStages},
		{"3", []Stage{StageRaceDetail}},
		{"1-3", []Stage{StageDiscovery, StageCupDetail, StageRaceDetail}},
		{"4,2", []Stage{StageCupDetail, StageOdds}},
		{"1,1-2,2", []Stage{StageDiscovery, StageCupDetail}},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseStages(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseStagesInvalid(t *testing.T) {
	for _, input := range []string{"0", "6", "x", "3-1", "1;2"} {
		_, err := ParseStages(input)
		assert.Error(t, err, "input %q", input)
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "discovery", StageDiscovery.String())
	assert.Equal(t, "result", StageResult.String())
	assert.Equal(t, "unknown", Stage(9).String())
}
