package service

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/phrazzld/analysis-service/internal/queue"
)

func TestNewAnalysisServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantNil    bool
		wantIs     error
		wantWrap   bool
		wantString string
	}{
		{name: "nil error", err: nil, wantNil: true},
		{
			name:   "queue not found maps to sentinel",
			err:    fmt.Errorf("load: %w", queue.ErrJobNotFound),
			wantIs: ErrJobNotFound,
		},
		{
			name:       "other errors are wrapped",
			err:        errors.New("connection refused"),
			wantWrap:   true,
			wantString: "analysis service poll failed: failed to load job: connection refused",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := NewAnalysisServiceError("poll", "failed to load job", tc.err)
			if tc.wantNil {
				assert.NoError(t, err)
				return
			}
			if tc.wantIs != nil {
				assert.Equal(t, tc.wantIs, err)
			}
			if tc.wantWrap {
				var svcErr *AnalysisServiceError
				assert.ErrorAs(t, err, &svcErr)
				assert.ErrorIs(t, err, tc.err)
				assert.Equal(t, tc.wantString, err.Error())
			}
		})
	}
}

func TestAnalysisServiceError_NoCause(t *testing.T) {
	err := &AnalysisServiceError{Operation: "create_service", Message: "queue cannot be nil"}
	assert.Equal(t, "analysis service create_service failed: queue cannot be nil", err.Error())
	assert.Nil(t, err.Unwrap())
}
