package localization_test

import (
	"lessonchat/backend/internal/localization"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetString_Fallbacks(t *testing.T) {
	fsys := fstest.MapFS{
		"i18n/en.json":    {Data: []byte(`{"greeting":"Hello","only_en":"English only"}`)},
		"i18n/uk.json":    {Data: []byte(`{"greeting":"Привіт"}`)},
		"i18n/README.txt": {Data: []byte("ignored")},
	}
	l, err := localization.NewLocalizerFS(fsys, "i18n")
	require.NoError(t, err)

	tests := []struct {
		name string
		lang string
		key  string
		want string
	}{
		{name: "direct hit", lang: "uk", key: "greeting", want: "Привіт"},
		{name: "falls back to english", lang: "uk", key: "only_en", want: "English only"},
		{name: "unknown language", lang: "de", key: "greeting", want: "Hello"},
		{name: "unknown key", lang: "en", key: "missing", want: "missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, l.GetString(tt.lang, tt.key))
		})
	}
}

func TestNewLocalizerFS_RejectsBrokenJSON(t *testing.T) {
	fsys := fstest.MapFS{"i18n/en.json": {Data: []byte(`{`)}}

	_, err := localization.NewLocalizerFS(fsys, "i18n")

	assert.Error(t, err)
}

func TestNewDefaultLocalizer(t *testing.T) {
	l, err := localization.NewDefaultLocalizer()
	require.NoError(t, err)

	en := l.Format("en", "unread_notification", "hi", "https://x/chat/1")
	uk := l.Format("uk", "unread_notification", "hi", "https://x/chat/1")

	assert.Contains(t, en, "hi")
	assert.Contains(t, en, "https://x/chat/1")
	assert.NotEqual(t, en, uk)
}
