package gsc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestAPIErrorMessageFallsBackToCause(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "status with reason",
			err:  &APIError{StatusCode: 403, Reason: "quota exceeded", Err: errors.New("googleapi: Error 403")},
			want: "gsc api error (status 403): quota exceeded",
		},
		{
			name: "status without reason keeps cause",
			err:  &APIError{StatusCode: 429, Err: errors.New("googleapi: got HTTP response code 429")},
			want: "gsc api error (status 429): googleapi: got HTTP response code 429",
		},
		{
			name: "no status",
			err:  &APIError{Err: errors.New("network unreachable")},
			want: "gsc api error: network unreachable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestNewAPIErrorEmptyGoogleMessageStillDescriptive(t *testing.T) {
	t.Parallel()

	cause := &googleapi.Error{Code: 429}
	apiErr := newAPIError(cause)

	require.Equal(t, 429, apiErr.StatusCode)
	require.NotEqual(t, "gsc api error (status 429): ", apiErr.Error())
	require.Contains(t, apiErr.Error(), "429")
	require.ErrorIs(t, apiErr, cause)
}
