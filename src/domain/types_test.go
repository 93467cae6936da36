package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSourceTypeJson(t *testing.T) {
	t.Parallel()

	for str, sourceType := range map[string]SourceType{
		`"scm"`: SourceTypeScm,
		`"pr"`:  SourceTypePr,
	} {
		var parsed SourceType
		assert.NoError(t, json.Unmarshal([]byte(str), &parsed))
		assert.Equal(t, sourceType, parsed)

		marshaled, err := json.Marshal(sourceType)
		assert.NoError(t, err)
		assert.Equal(t, str, string(marshaled))
	}

	var parsed SourceType
	assert.Error(t, json.Unmarshal([]byte(`"helm"`), &parsed))
}

func TestCheckRunSucceeded(t *testing.T) {
	t.Parallel()

	assert.True(t, CheckRun{Name: "build", Status: "completed", Conclusion: "success"}.Succeeded())

	for _, check := range []CheckRun{
		{Name: "build", Status: "completed", Conclusion: "failure"},
		{Name: "build", Status: "completed", Conclusion: "cancelled"},
		{Name: "build", Status: "in_progress", Conclusion: ""},
		// A conclusion only counts once the check completed.
		{Name: "build", Status: "queued", Conclusion: "success"},
	} {
		assert.False(t, check.Succeeded(), "%+v", check)
	}
}
