package cache

import (
	"testing"
)

func TestKey_String(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want string
	}{
		{
			name: "provider without params",
			key:  Key{Provider: "github/rate-limit"},
			want: "badge:github/rate-limit",
		},
		{
			name: "provider with params",
			key: Key{
				Provider: "github/stars",
				Params:   map[string]string{"owner": "foo", "repo": "bar"},
			},
			want: "badge:github/stars:owner=foo:repo=bar",
		},
		{
			name: "params sorted for determinism",
			key: Key{
				Provider: "github/tags",
				Params:   map[string]string{"repo": "bar", "owner": "foo"},
			},
			want: "badge:github/tags:owner=foo:repo=bar",
		},
		{
			name: "provider slashes trimmed",
			key:  Key{Provider: "/github/stars/"},
			want: "badge:github/stars",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.key.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKey_String_Deterministic(t *testing.T) {
	key := Key{
		Provider: "github/stars",
		Params:   map[string]string{"owner": "foo", "repo": "bar", "ref": "main"},
	}

	first := key.String()
	for i := 0; i < 10; i++ {
		if got := key.String(); got != first {
			t.Fatalf("String() not deterministic: %q != %q", got, first)
		}
	}
}
