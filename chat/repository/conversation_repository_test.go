package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParticipantLiteralIsValidJSON(t *testing.T) {
	assert.Equal(t, `["alice"]`, participantLiteral("alice"))

	// Names carrying JSON metacharacters stay intact.
	for _, name := range []string{`o"brien`, `back\slash`, "new\nline", "😀"} {
		var decoded []string
		require.NoError(t, json.Unmarshal([]byte(participantLiteral(name)), &decoded), name)
		assert.Equal(t, []string{name}, decoded)
	}
}
