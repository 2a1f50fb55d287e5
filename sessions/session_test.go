package sessions_test

import (
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-school-session/credentials"
	"github.com/jrsteele09/go-school-session/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_CopiesRaw(t *testing.T) {
	raw := map[string]any{"refresh_token": "r1"}
	s := sessions.New(credentials.ProviderOAuth, "oauth:stu1", "tok", time.Now(), raw)
	raw["refresh_token"] = "mutated"

	require.Equal(t, "r1", s.RawString("refresh_token"))
	require.NotEmpty(t, s.ID)
	require.Nil(t, s.Raw("missing"))
}

func TestHolder_ReplaceAndCompare(t *testing.T) {
	var h sessions.Holder
	require.Nil(t, h.Current())

	first := sessions.New(credentials.ProviderNativeCookie, "id", "t1", time.Now(), nil)
	second := sessions.New(credentials.ProviderNativeCookie, "id", "t2", time.Now(), nil)

	require.Nil(t, h.Replace(first))
	require.False(t, h.CompareAndReplace(second, second))
	require.True(t, h.CompareAndReplace(first, second))
	require.Same(t, second, h.Current())
	require.Same(t, second, h.Clear())
	require.Nil(t, h.Current())
}

func TestHolder_ConcurrentReadersSeeWholeValues(t *testing.T) {
	var h sessions.Holder
	h.Replace(sessions.New(credentials.ProviderOAuth, "id", "t0", time.Now(), map[string]any{"n": "t0"}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tok := "t" + string(rune('a'+j%26))
				h.Replace(sessions.New(credentials.ProviderOAuth, "id", tok, time.Now(), map[string]any{"n": tok}))
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s := h.Current()
				assert.Equal(t, s.Token, s.RawString("n"))
			}
		}()
	}
	wg.Wait()
}
