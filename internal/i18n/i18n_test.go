package i18n

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslator_Translate(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	tests := []struct {
		name string
		key  string
		lang string
		args []string
		want string
	}{
		{"base locale", "email:invite", "en-GB", []string{"Example Forum"}, "Invitation from Example Forum"},
		{"regional match", "email:invite", "en-US", []string{"Example Forum"}, "Invitation from Example Forum"},
		{"other locale", "email:invite", "fr", []string{"Example Forum"}, "Invitation de Example Forum"},
		{"unsupported locale", "email:invite", "ja", []string{"Example Forum"}, "Invitation from Example Forum"},
		{"empty language", "error:invalid-uid", "", nil, "Invalid User ID"},
		{"two arguments", "email:invitation.text1", "en-GB", []string{"alice", "Example Forum"}, "alice has invited you to join Example Forum"},
		{"unknown key", "email:missing", "en-GB", nil, "email:missing"},
		{"register namespace", "register:invite.error-invite-only", "fr", nil,
			"L'inscription directe est désactivée. Vous devez être invité par un utilisateur existant pour accéder à ce forum."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tr.Translate(tt.key, tt.lang, tt.args...))
		})
	}
}

func TestTranslator_Compile(t *testing.T) {
	tr, err := New()
	require.NoError(t, err)

	assert.Equal(t, "Email was already invited", tr.Compile("[[error:email-invited]]", "en-GB"))
	assert.Equal(t, "Invitation from Example Forum", tr.Compile("[[email:invite, Example Forum]]", "en-GB"))
	assert.Equal(t, "plain text", tr.Compile("plain text", "en-GB"))
	assert.Equal(t, "[[error:nope]]", tr.Compile("[[error:nope]]", "en-GB"))
}

func TestLoadFromFS(t *testing.T) {
	t.Run("Missing keys fall back to base", func(t *testing.T) {
		fsys := fstest.MapFS{
			"locales/en-GB/email.yaml": {Data: []byte("locale: en-GB\nnamespace: email\nmessages:\n  invite: \"Invitation from %1\"\n  cta: \"Join\"\n")},
			"locales/de/email.yaml":    {Data: []byte("locale: de\nnamespace: email\nmessages:\n  invite: \"Einladung von %1\"\n")},
		}
		tr, err := LoadFromFS(fsys)
		require.NoError(t, err)
		assert.Equal(t, []string{"en-GB", "de"}, tr.Languages())
		assert.Equal(t, "Einladung von X", tr.Translate("email:invite", "de", "X"))
		assert.Equal(t, "Join", tr.Translate("email:cta", "de"))
	})

	t.Run("Base locale required", func(t *testing.T) {
		fsys := fstest.MapFS{
			"locales/de/email.yaml": {Data: []byte("locale: de\nnamespace: email\nmessages:\n  invite: x\n")},
		}
		_, err := LoadFromFS(fsys)
		assert.Error(t, err)
	})

	t.Run("Locale must match path", func(t *testing.T) {
		fsys := fstest.MapFS{
			"locales/en-GB/email.yaml": {Data: []byte("locale: fr\nnamespace: email\nmessages:\n  invite: x\n")},
		}
		_, err := LoadFromFS(fsys)
		assert.Error(t, err)
	})

	t.Run("Keys must exist in base", func(t *testing.T) {
		fsys := fstest.MapFS{
			"locales/en-GB/email.yaml": {Data: []byte("locale: en-GB\nnamespace: email\nmessages:\n  invite: x\n")},
			"locales/fr/email.yaml":    {Data: []byte("locale: fr\nnamespace: email\nmessages:\n  extra: y\n")},
		}
		_, err := LoadFromFS(fsys)
		assert.Error(t, err)
	})

	t.Run("No catalogs", func(t *testing.T) {
		_, err := LoadFromFS(fstest.MapFS{})
		assert.Error(t, err)
	})
}

func TestPrintfFormat(t *testing.T) {
	assert.Equal(t, "Invitation from %[1]s", printfFormat("Invitation from %1"))
	assert.Equal(t, "%[2]s and %[1]s", printfFormat("%2 and %1"))
	assert.Equal(t, "100%% sure", printfFormat("100% sure"))
	assert.Equal(t, "trailing %%", printfFormat("trailing %"))
}
