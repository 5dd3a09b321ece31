package i18n

import (
	"sort"
	"strings"
	"testing"
)

func TestCatalogsComplete(t *testing.T) {
	reference := getMessages(DefaultLanguage)
	if len(reference) == 0 {
		t.Fatal("no messages in default language")
	}

	for _, lang := range GetSupportedLanguages() {
		t.Run(lang, func(t *testing.T) {
			messages := getMessages(lang)
			var missing []string
			for key := range reference {
				if _, ok := messages[key]; !ok {
					missing = append(missing, key)
				}
			}
			sort.Strings(missing)
			if len(missing) > 0 {
				t.Errorf("language %s is missing %d keys: %v", lang, len(missing), missing)
			}
			for key := range messages {
				if _, ok := reference[key]; !ok {
					t.Errorf("language %s has key %q not in %s", lang, key, DefaultLanguage)
				}
			}
		})
	}
}

func TestKeyPrefixes(t *testing.T) {
	prefixes := []string{"error.", "success.", "status.", "bot."}

	for _, lang := range GetSupportedLanguages() {
		for key := range getMessages(lang) {
			ok := false
			for _, prefix := range prefixes {
				if strings.HasPrefix(key, prefix) && len(key) > len(prefix) {
					ok = true
					break
				}
			}
			if !ok {
				t.Errorf("key %q (%s) does not start with one of %v", key, lang, prefixes)
			}
		}
	}
}

func countVerbs(message string) int {
	n := 0
	for i := 0; i < len(message)-1; i++ {
		if message[i] == '%' && (message[i+1] == 's' || message[i+1] == 'd') {
			n++
		}
	}
	return n
}

func TestPlaceholders(t *testing.T) {
	tests := []struct {
		key  string
		want int
	}{
		{"success.track_added", 2},
		{"success.track_removed", 2},
		{"success.position_set", 2},
		{"success.seeked", 1},
		{"success.cleared", 1},
		{"success.destination_set", 1},
		{"status.playing", 4},
		{"status.paused", 4},
		{"bot.now_playing", 1},
		{"bot.track_failed", 1},
		{"error.generic", 0},
	}

	for _, lang := range GetSupportedLanguages() {
		messages := getMessages(lang)
		for _, tt := range tests {
			t.Run(lang+"/"+tt.key, func(t *testing.T) {
				message, ok := messages[tt.key]
				if !ok {
					t.Fatalf("key %q not found", tt.key)
				}
				if got := countVerbs(message); got != tt.want {
					t.Errorf("countVerbs(%q) = %d, want %d", message, got, tt.want)
				}
			})
		}
	}
}

func TestLocalizer_T(t *testing.T) {
	en := NewLocalizer(DefaultLanguage)

	tests := []struct {
		name string
		key  string
		args []any
		want string
	}{
		{"plain", "error.index_out_of_range", nil, "Track index out of range."},
		{"formatted", "success.track_added", []any{3, "Test Song"}, "Added #3: Test Song"},
		{"status", "status.playing", []any{2, "b", "1:05", "3:05"}, "Playing #2: b [1:05 / 3:05]"},
		{"unknown key", "this.key.does.not.exist", nil, "this.key.does.not.exist"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := en.T(tt.key, tt.args...); got != tt.want {
				t.Errorf("T(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestLocalizer_Fallback(t *testing.T) {
	l := &Localizer{language: BerneseGermanMessages, messages: map[string]string{}}

	if got, want := l.T("error.generic"), englishMessages["error.generic"]; got != want {
		t.Errorf("T() = %q, want English fallback %q", got, want)
	}
	if !l.Has("error.generic") {
		t.Error("Has(error.generic) = false, want true")
	}
	if l.Has("no.such.key") {
		t.Error("Has(no.such.key) = true, want false")
	}
}

func TestMatch(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"en", DefaultLanguage, true},
		{" EN ", DefaultLanguage, true},
		{"ch_be", BerneseGermanMessages, true},
		{"CH-BE", BerneseGermanMessages, true},
		{"fr", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := Match(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Match(%q) = %q, %v, want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNewLocalizer(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ch-be", BerneseGermanMessages},
		{"en", DefaultLanguage},
		{"xx", DefaultLanguage},
	}
	for _, tt := range tests {
		if got := NewLocalizer(tt.in).Language(); got != tt.want {
			t.Errorf("NewLocalizer(%q).Language() = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetSupportedLanguages(t *testing.T) {
	languages := GetSupportedLanguages()
	if len(languages) == 0 || languages[0] != DefaultLanguage {
		t.Errorf("GetSupportedLanguages() = %v, want %s first", languages, DefaultLanguage)
	}
	for _, lang := range languages {
		if _, ok := catalogs[lang]; !ok {
			t.Errorf("language %s has no catalog", lang)
		}
	}
}

func BenchmarkLocalizerWithArgs(b *testing.B) {
	localizer := NewLocalizer(DefaultLanguage)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = localizer.T("success.track_added", 1, "Test Song Name")
	}
}
