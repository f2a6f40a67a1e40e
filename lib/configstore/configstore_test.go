package configstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var testDefaults = []byte(`home_url: ""
account_preferences:
  language: en
browser_configuration:
  firefox:
    preferences: {}
`)

func newStore(t *testing.T, userContent string) *Store {
	t.Helper()

	userPath := filepath.Join(t.TempDir(), "config.yaml")
	if userContent != "" {
		err := os.WriteFile(userPath, []byte(userContent), 0o600)
		require.NoError(t, err)
	}

	store, err := Load(testDefaults, userPath)
	require.NoError(t, err)
	return store
}

func TestSetGetRoundTrip(t *testing.T) {
	store := newStore(t, "")

	testCases := []struct {
		path  []string
		value any
	}{
		{[]string{"home_url"}, "https://wd5.myworkday.com/acme/d/home.htmld"},
		{[]string{"account_preferences", "language"}, "cs"},
		{[]string{"browser_configuration", "firefox", "preferences", "network.negotiate-auth.trusted-uris"}, ".example.com"},
		{[]string{"browser_configuration", "firefox", "preferences", "network.http.speculative-parallel-limit"}, 0},
		{[]string{"a", "b", "c", "d", "e"}, true},
	}

	for _, test := range testCases {
		err := store.Set(test.path, test.value)
		require.NoError(t, err)

		got, err := store.Get(test.path...)
		require.NoError(t, err)
		require.Equal(t, test.value, got)
	}

	// earlier keys survive later writes
	home, err := store.GetString("home_url")
	require.NoError(t, err)
	require.Equal(t, "https://wd5.myworkday.com/acme/d/home.htmld", home)
}

func TestDeepMerge(t *testing.T) {
	userPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(userPath, []byte("a:\n  b: 9\n"), 0o600)
	require.NoError(t, err)

	store, err := Load([]byte("a:\n  b: 1\n  c: 2\n"), userPath)
	require.NoError(t, err)

	eff, err := store.Effective()
	require.NoError(t, err)

	diff := cmp.Diff(map[string]any{
		"a": map[string]any{"b": 9, "c": 2},
	}, eff)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestOverrideReplacesAcrossShapes(t *testing.T) {
	userPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(userPath, []byte("a: plain\n"), 0o600)
	require.NoError(t, err)

	store, err := Load([]byte("a:\n  b: 1\n"), userPath)
	require.NoError(t, err)

	got, err := store.Get("a")
	require.NoError(t, err)
	require.Equal(t, "plain", got)
}

func TestGetMissingKey(t *testing.T) {
	store := newStore(t, "")

	_, err := store.Get("account_preferences", "timezone")
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.Contains(t, err.Error(), "account_preferences.timezone")
}

func TestSetThroughScalarFails(t *testing.T) {
	store := newStore(t, "home_url: https://example.com\n")

	err := store.Set([]string{"home_url", "nested"}, 1)
	require.ErrorIs(t, err, ErrNotAMapping)
}

func TestPreferences(t *testing.T) {
	store := newStore(t, "")

	prefs, err := store.Preferences("firefox")
	require.NoError(t, err)
	require.Empty(t, prefs)

	err = store.Set(
		[]string{"browser_configuration", "firefox", "preferences", "network.negotiate-auth.trusted-uris"},
		".example.com",
	)
	require.NoError(t, err)

	prefs, err = store.Preferences("firefox")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"network.negotiate-auth.trusted-uris": ".example.com"}, prefs)

	// a browser nobody configured is not an error
	prefs, err = store.Preferences("chromium")
	require.NoError(t, err)
	require.Empty(t, prefs)
}

func TestSaveReloadReproducesTree(t *testing.T) {
	store := newStore(t, "")

	err := store.Set([]string{"home_url"}, "https://example.com")
	require.NoError(t, err)
	err = store.Set([]string{"browser_configuration", "firefox", "preferences", "network.negotiate-auth.trusted-uris"}, ".example.com")
	require.NoError(t, err)

	require.True(t, store.Dirty())
	require.NoError(t, store.Save())
	require.False(t, store.Dirty())

	reloaded, err := Load(testDefaults, store.userPath)
	require.NoError(t, err)

	before, err := store.Effective()
	require.NoError(t, err)
	after, err := reloaded.Effective()
	require.NoError(t, err)

	diff := cmp.Diff(before, after)
	if diff != "" {
		t.Fatal(diff)
	}
}

func TestSavePreservesCommentsAndOrder(t *testing.T) {
	userContent := `# worknight user configuration
home_url: https://example.com # tenant entry point
browser_configuration:
  firefox:
    # SSO trust
    preferences:
      network.negotiate-auth.trusted-uris: .example.com
account_preferences:
  language: en
`
	store := newStore(t, userContent)

	err := store.Set([]string{"account_preferences", "language"}, "cs")
	require.NoError(t, err)
	require.NoError(t, store.Save())

	raw, err := os.ReadFile(store.userPath)
	require.NoError(t, err)
	out := string(raw)

	require.Contains(t, out, "# worknight user configuration")
	require.Contains(t, out, "# tenant entry point")
	require.Contains(t, out, "# SSO trust")
	require.Contains(t, out, "language: cs")

	// untouched keys keep their relative order
	require.Less(t,
		strings.Index(out, "home_url"),
		strings.Index(out, "browser_configuration"),
	)
	require.Less(t,
		strings.Index(out, "browser_configuration"),
		strings.Index(out, "account_preferences"),
	)
}

func TestSaveNoopWhenClean(t *testing.T) {
	store := newStore(t, "")

	require.NoError(t, store.Save())
	_, err := os.Stat(store.userPath)
	require.True(t, os.IsNotExist(err))
}

func TestLoadInvalidYaml(t *testing.T) {
	userPath := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(userPath, []byte("a: [unclosed\n"), 0o600)
	require.NoError(t, err)

	_, err = Load(testDefaults, userPath)
	require.Error(t, err)

	_, err = Load([]byte("{{nonsense"), filepath.Join(t.TempDir(), "config.yaml"))
	require.Error(t, err)
}
