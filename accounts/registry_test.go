package accounts_test

import (
	"testing"

	"github.com/jrsteele09/go-school-session/accounts"
	apperrors "github.com/jrsteele09/go-school-session/internal/errors"
	"github.com/stretchr/testify/require"
)

func children() []accounts.Account {
	return []accounts.Account{
		{ID: "c1", DisplayName: "Alice", Kind: accounts.KindParent, Capabilities: accounts.NewFeatureSet(accounts.FeatureGrades)},
		{ID: "c2", DisplayName: "Bob", Kind: accounts.KindParent, Capabilities: accounts.NewFeatureSet(accounts.AllFeatures...)},
	}
}

func TestRegistry_EmptyIsNotAuthenticated(t *testing.T) {
	r := accounts.NewRegistry()

	_, err := r.Active()
	require.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
	require.ErrorIs(t, r.Select("c1"), apperrors.ErrNotAuthenticated)
	require.Nil(t, r.List())
}

func TestRegistry_ActiveDefaultsToFirst(t *testing.T) {
	r := accounts.NewRegistry()
	r.Replace(children())

	active, err := r.Active()
	require.NoError(t, err)
	require.Equal(t, "c1", active.ID)
}

func TestRegistry_Select(t *testing.T) {
	r := accounts.NewRegistry()
	r.Replace(children())

	require.NoError(t, r.Select("c2"))
	active, err := r.Resolve("")
	require.NoError(t, err)
	require.Equal(t, "Bob", active.DisplayName)

	err = r.Select("c9")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	active, err = r.Active()
	require.NoError(t, err)
	require.Equal(t, "c2", active.ID)
}

func TestRegistry_ReplaceDropsStaleAccounts(t *testing.T) {
	r := accounts.NewRegistry()
	r.Replace(children())
	require.NoError(t, r.Select("c2"))

	r.Replace([]accounts.Account{{ID: "s1", Kind: accounts.KindStudent}})

	_, err := r.Get("c2")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
	active, err := r.Active()
	require.NoError(t, err)
	require.Equal(t, "s1", active.ID)
}

func TestRegistry_ListIsACopy(t *testing.T) {
	r := accounts.NewRegistry()
	input := children()
	r.Replace(input)
	input[0].DisplayName = "changed"

	list := r.List()
	list[1].DisplayName = "changed"

	again := r.List()
	require.Equal(t, "Alice", again[0].DisplayName)
	require.Equal(t, "Bob", again[1].DisplayName)
}

func TestFeatureSet(t *testing.T) {
	set := accounts.NewFeatureSet(accounts.FeatureTimetable, accounts.FeatureGrades)
	require.True(t, set.Has(accounts.FeatureGrades))
	require.False(t, set.Has(accounts.FeatureHomework))
	require.Equal(t, []accounts.Feature{accounts.FeatureGrades, accounts.FeatureTimetable}, set.Sorted())

	a := accounts.Account{Capabilities: set}
	require.True(t, a.Can(accounts.FeatureTimetable))
}
