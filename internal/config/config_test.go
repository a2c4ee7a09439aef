package config

import (
	"testing"
	"time"
)

func TestSplitIDs(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", nil},
		{"1", []string{"1"}},
		{"1,2,3", []string{"1", "2", "3"}},
		{" 1 , 2 ", []string{"1", "2"}},
		{"1,,2,", []string{"1", "2"}},
	}

	for _, tt := range tests {
		got := splitIDs(tt.raw)
		if len(got) != len(tt.want) {
			t.Errorf("splitIDs(%q) = %v; want %v", tt.raw, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitIDs(%q)[%d] = %q; want %q", tt.raw, i, got[i], tt.want[i])
			}
		}
	}
}

func TestGetEnvAsIntFallback(t *testing.T) {
	t.Setenv("CONFIG_TEST_INT", "not-a-number")
	if got := getEnvAsInt("CONFIG_TEST_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt with junk value = %d; want fallback 7", got)
	}

	t.Setenv("CONFIG_TEST_INT", "42")
	if got := getEnvAsInt("CONFIG_TEST_INT", 7); got != 42 {
		t.Errorf("getEnvAsInt = %d; want 42", got)
	}
}

func TestPromptTimeoutDefault(t *testing.T) {
	var review ReviewConfig
	if got := review.PromptTimeout(); got != 30*time.Second {
		t.Errorf("PromptTimeout() with zero value = %v; want 30s", got)
	}

	review.PromptTimeoutSeconds = 5
	if got := review.PromptTimeout(); got != 5*time.Second {
		t.Errorf("PromptTimeout() = %v; want 5s", got)
	}
}
