package paths

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		path string
		want []string
	}{
		{"/", []string{}},
		{"/a/b/", []string{"a", "b"}},
		{"/a/b", []string{"a", "b"}},
		{"a/b", []string{"a", "b"}},
		{"//a//b", []string{"a", "b"}},
		{"/users/{param1}", []string{"users", "{param1}"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := Tokenize(tt.path)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %#v, want %#v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsTemplateToken(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"{id}", true},
		{"{}", true},
		{"id", false},
		{"{id", false},
		{"id}", false},
		{"{", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsTemplateToken(tt.token); got != tt.want {
			t.Errorf("IsTemplateToken(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestTemplateName(t *testing.T) {
	if got := TemplateName("{userId}"); got != "userId" {
		t.Errorf("TemplateName = %q, want userId", got)
	}
	if got := TemplateName("users"); got != "" {
		t.Errorf("TemplateName of literal = %q, want empty", got)
	}
}

func TestCountParameters(t *testing.T) {
	tests := []struct {
		template string
		want     int
	}{
		{"/", 0},
		{"/users", 0},
		{"/users/{id}", 1},
		{"/users/{id}/posts/{postId}", 2},
		{"/{a}/{b}/{c}", 3},
	}

	for _, tt := range tests {
		if got := CountParameters(tt.template); got != tt.want {
			t.Errorf("CountParameters(%q) = %d, want %d", tt.template, got, tt.want)
		}
	}
}

func TestLooksLikeParameterValue(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"integer", "123", true},
		{"negative", "-5", true},
		{"decimal", "3.14", true},
		{"exponent", "1e5", true},
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", true},
		{"uppercase uuid", "550E8400-E29B-41D4-A716-446655440000", true},
		{"dictionary word", "users", false},
		{"common english word", "privacy", false},
		{"dictionary words with hyphen", "user-profiles", false},
		{"dictionary words with underscore", "api_keys", false},
		{"version segment", "v1", false},
		{"unknown fragment", "xk72q", true},
		{"mixed fragments", "users-xk72q", true},
		{"case sensitive lookup", "Users", true},
		{"double separator", "user--profile", true},
		{"slug", "my-first-post-2023", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeParameterValue(tt.token); got != tt.want {
				t.Errorf("LooksLikeParameterValue(%q) = %v, want %v", tt.token, got, tt.want)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	two := 2

	tests := []struct {
		name     string
		path     string
		required *int
		valid    bool
		want     string
	}{
		{"simple", "/a/b", nil, true, "/a/b"},
		{"root", "/", nil, true, "/"},
		{"trailing slash", "/a/b/", nil, true, "/a/b"},
		{"one interior double slash", "/a//b", nil, true, "/a/b"},
		{"two interior double slashes", "/a//b//c", nil, false, ""},
		{"double slash and trailing slash", "/a//b/", nil, false, ""},
		{"empty", "", nil, false, ""},
		{"relative", "a/b", nil, false, ""},
		{"angle bracket", "/a<b", nil, false, ""},
		{"query", "/a?b=c", nil, false, ""},
		{"backslash", `/a\b`, nil, false, ""},
		{"ampersand", "/a&b", nil, false, ""},
		{"equals", "/a=b", nil, false, ""},
		{"greater than", "/a>b", nil, false, ""},
		{"required count ok", "/a/b", &two, true, "/a/b"},
		{"required count mismatch", "/a/b/c", &two, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidatePath(tt.path, tt.required)
			if got.Valid != tt.valid {
				t.Fatalf("ValidatePath(%q).Valid = %v, want %v (err %q)", tt.path, got.Valid, tt.valid, got.Err)
			}
			if tt.valid && got.Path != tt.want {
				t.Errorf("ValidatePath(%q).Path = %q, want %q", tt.path, got.Path, tt.want)
			}
			if !tt.valid && got.Err == "" {
				t.Errorf("ValidatePath(%q) rejected without an error message", tt.path)
			}
		})
	}
}

func TestIsWord(t *testing.T) {
	for _, w := range []string{
		"users", "orders", "api", "v1", "search",
		"help", "privacy", "docs", "overview", "intro",
		"inventory", "analytics", "music", "weather",
	} {
		if !IsWord(w) {
			t.Errorf("IsWord(%q) = false, want true", w)
		}
	}
	if IsWord("") {
		t.Error("empty string must not be a word")
	}
}
