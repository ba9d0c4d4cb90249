package lnurlpay

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatus(t *testing.T) {
	cause := errors.New("cause")

	tests := []struct {
		err        error
		wantStatus int
		wantReason string
	}{
		{
			err:        newError(KindMalformedRequest, "bad", cause),
			wantStatus: http.StatusBadRequest,
			wantReason: "bad",
		},
		{
			err:        newError(KindVerificationFailure, "sig", cause),
			wantStatus: http.StatusBadRequest,
			wantReason: "sig",
		},
		{
			err:        newError(KindUpstreamFailure, "node", cause),
			wantStatus: http.StatusBadGateway,
			wantReason: "node",
		},
		{
			err:        newError(KindSerializationFailure, "", cause),
			wantStatus: http.StatusInternalServerError,
			wantReason: "internal error",
		},
		{
			err: fmt.Errorf("wrapped: %w", newError(
				KindMalformedRequest, "bad", cause,
			)),
			wantStatus: http.StatusBadRequest,
			wantReason: "bad",
		},
		{
			err:        cause,
			wantStatus: http.StatusInternalServerError,
			wantReason: "internal error",
		},
	}

	for _, test := range tests {
		require.Equal(t, test.wantStatus, HTTPStatus(test.err))
		require.Equal(t, test.wantReason, errorReason(test.err))
	}

	require.ErrorIs(t, newError(KindUpstreamFailure, "", cause), cause)
}
