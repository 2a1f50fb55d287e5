package provider_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/jrsteele09/go-school-session/accounts"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/jrsteele09/go-school-session/provider"
	"github.com/stretchr/testify/require"
)

func TestOutcomeConstructors(t *testing.T) {
	rejected := provider.Rejected("code 505")
	require.Equal(t, provider.OutcomeRejected, rejected.Kind)
	require.ErrorIs(t, rejected.Err(), apperrors.ErrInvalidCredentials)

	failed := provider.TransportFailed(errors.New("connection reset"))
	require.ErrorIs(t, failed.Err(), apperrors.ErrTransportFailure)

	precondition := provider.TransportFailed(apperrors.Wrapf(apperrors.ErrPreconditionFailed, "no GTK cookie"))
	require.ErrorIs(t, precondition.Err(), apperrors.ErrPreconditionFailed)
	require.NotErrorIs(t, precondition.Err(), apperrors.ErrTransportFailure)

	challenge := provider.ChallengeRequired(provider.LoginChallenge{ContinuationToken: "c"})
	require.ErrorIs(t, challenge.Err(), apperrors.ErrChallengeRequired)
	require.Equal(t, "challenge_required", challenge.Kind.String())
}

func TestLoginChallenge_Expired(t *testing.T) {
	now := time.Now()
	require.False(t, provider.LoginChallenge{}.Expired(now))
	require.True(t, provider.LoginChallenge{ExpiresHint: now.Add(-time.Second)}.Expired(now))
	require.False(t, provider.LoginChallenge{ExpiresHint: now.Add(time.Minute)}.Expired(now))
}

func TestResponseErr(t *testing.T) {
	require.NoError(t, provider.OK(nil).Err())
	require.ErrorIs(t, provider.Failed(provider.StatusAuthExpired, nil).Err(), apperrors.ErrSessionExpired)
	require.ErrorIs(t, provider.Failed(provider.StatusDenied, errors.New("x")).Err(), apperrors.ErrPermissionDenied)
	require.ErrorIs(t, provider.Failed(provider.StatusNotFound, nil).Err(), apperrors.ErrNotFound)
	require.ErrorIs(t, provider.Failed(provider.StatusTransportError, nil).Err(), apperrors.ErrTransportFailure)

	relogin := provider.Failed(provider.StatusAuthExpired, apperrors.Wrapf(apperrors.ErrInvalidCredentials, "relogin")).Err()
	require.ErrorIs(t, relogin, apperrors.ErrInvalidCredentials)
	require.Equal(t, apperrors.KindInvalidCredentials, apperrors.Classify(relogin))

	cancelled := provider.Failed(provider.StatusTransportError, context.Canceled).Err()
	require.ErrorIs(t, cancelled, apperrors.ErrTransportFailure)
	require.ErrorIs(t, cancelled, context.Canceled)
}

func TestTransportError_KeepsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp := provider.TransportError(ctx, errors.New("request aborted"))
	require.True(t, resp.Cancelled())

	resp = provider.TransportError(context.Background(), errors.New("dial tcp: refused"))
	require.False(t, resp.Cancelled())
	require.Equal(t, provider.StatusTransportError, resp.Status)
}

func TestParamsDateRange(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)

	from, to, err := provider.Params{}.DateRange(now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), from)
	require.Equal(t, from.AddDate(0, 0, 7), to)

	from, to, err = provider.Params{provider.ParamFrom: "2026-09-01", provider.ParamTo: "2026-09-05"}.DateRange(now)
	require.NoError(t, err)
	require.Equal(t, 4*24*time.Hour, to.Sub(from))

	_, _, err = provider.Params{provider.ParamFrom: "01/09/2026"}.DateRange(now)
	require.Error(t, err)

	_, _, err = provider.Params{provider.ParamFrom: "2026-09-05", provider.ParamTo: "2026-09-01"}.DateRange(now)
	require.Error(t, err)
}

func TestParamsDateRange_UsesLocalDay(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)
	now := time.Date(2026, 10, 20, 1, 30, 0, 0, paris)

	from, to, err := provider.Params{}.DateRange(now)
	require.NoError(t, err)
	require.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, paris), from)
	require.Equal(t, "2026-10-20", from.Format(provider.DateLayout))
	require.Equal(t, "2026-10-27", to.Format(provider.DateLayout))

	from, _, err = provider.Params{provider.ParamFrom: "2026-10-22"}.DateRange(now)
	require.NoError(t, err)
	require.Equal(t, paris, from.Location())
	require.Equal(t, time.Date(2026, 10, 22, 0, 0, 0, 0, paris), from)
}

func TestDateBounded(t *testing.T) {
	require.True(t, provider.DateBounded(accounts.FeatureTimetable))
	require.True(t, provider.DateBounded(accounts.FeatureHomework))
	require.False(t, provider.DateBounded(accounts.FeatureGrades))
	require.False(t, provider.DateBounded(accounts.FeatureSchoolLife))
}

func TestLooksLikeHTML(t *testing.T) {
	require.True(t, provider.LooksLikeHTML([]byte("  <!DOCTYPE html><html><body>login</body></html>")))
	require.True(t, provider.LooksLikeHTML([]byte("<html>")))
	require.False(t, provider.LooksLikeHTML([]byte(`{"code":200}`)))
	require.False(t, provider.LooksLikeHTML([]byte("<xml/>")))
	require.False(t, provider.LooksLikeHTML(nil))
}

func TestStatusFromHTTP(t *testing.T) {
	require.Equal(t, provider.StatusOK, provider.StatusFromHTTP(http.StatusOK))
	require.Equal(t, provider.StatusAuthExpired, provider.StatusFromHTTP(http.StatusUnauthorized))
	require.Equal(t, provider.StatusDenied, provider.StatusFromHTTP(http.StatusForbidden))
	require.Equal(t, provider.StatusNotFound, provider.StatusFromHTTP(http.StatusNotFound))
	require.Equal(t, provider.StatusTransportError, provider.StatusFromHTTP(http.StatusBadGateway))
}

func TestCanonicalNormalize(t *testing.T) {
	day := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	tt := (&provider.Timetable{Lessons: []provider.Lesson{
		{Subject: "Maths", Start: day.Add(2 * time.Hour)},
		{Subject: "History", Start: day},
		{Subject: "Art", Start: day},
	}}).Normalize()
	require.Equal(t, []string{"Art", "History", "Maths"}, []string{tt.Lessons[0].Subject, tt.Lessons[1].Subject, tt.Lessons[2].Subject})

	empty := (&provider.Grades{}).Normalize()
	require.NotNil(t, empty.Grades)
	require.NotNil(t, empty.Averages)
}
