package errors_test

import (
	"context"
	"testing"

	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	pkgerrors "github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want apperrors.Kind
	}{
		{"nil", nil, apperrors.KindUnknown},
		{"precondition", apperrors.ErrPreconditionFailed, apperrors.KindPreconditionFailed},
		{"wrapped credentials", pkgerrors.Wrap(apperrors.ErrInvalidCredentials, "[Machine.Begin]"), apperrors.KindInvalidCredentials},
		{"wrapf expired", apperrors.Wrapf(apperrors.ErrSessionExpired, "fetch %s", "timetable"), apperrors.KindSessionExpired},
		{"pending challenge", apperrors.ErrNoPendingChallenge, apperrors.KindNotAuthenticated},
		{"denied", apperrors.ErrPermissionDenied, apperrors.KindPermissionDenied},
		{"unrelated", context.Canceled, apperrors.KindUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, apperrors.Classify(tt.err))
		})
	}
}

func TestUserMessage_DistinguishesPreconditionFromCredentials(t *testing.T) {
	precondition := apperrors.UserMessage(apperrors.ErrPreconditionFailed)
	credentials := apperrors.UserMessage(apperrors.ErrInvalidCredentials)

	require.NotEqual(t, precondition, credentials)
	require.Contains(t, precondition, "try again")
	require.Contains(t, credentials, "password")
}

func TestUserMessage_HidesBackendText(t *testing.T) {
	err := pkgerrors.Wrap(apperrors.ErrTransportFailure, "backend said: Erreur interne 0x51")
	require.NotContains(t, apperrors.UserMessage(err), "0x51")
}

func TestWrapf_Nil(t *testing.T) {
	require.NoError(t, apperrors.Wrapf(nil, "context"))
}
