package errs

import (
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindsMatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
		kind     Kind
	}{
		{"not found", NotFound(os.ErrNotExist, "open %s", "sales.csv"), ErrNotFound, KindNotFound},
		{"schema", Schema("target column %q missing", "Sales"), ErrSchema, KindSchema},
		{"data", Data("need at least %d rows", 2), ErrData, KindData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("stage: %w", tt.err)
			assert.True(t, errors.Is(wrapped, tt.sentinel))
			assert.Equal(t, tt.kind, KindOf(wrapped))
			for _, other := range []error{ErrNotFound, ErrSchema, ErrData} {
				if other != tt.sentinel {
					assert.False(t, errors.Is(wrapped, other))
				}
			}
		})
	}
}

func TestErrorMessageAndCause(t *testing.T) {
	err := NotFound(os.ErrNotExist, "open %s", "x.csv")
	assert.Equal(t, "[NOT_FOUND] open x.csv: file does not exist", err.Error())
	assert.True(t, errors.Is(err, os.ErrNotExist))

	err2 := Schema("bad columns").With("expected", 3)
	assert.Equal(t, "[SCHEMA] bad columns", err2.Error())
	assert.Equal(t, 3, err2.Context["expected"])

	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}
