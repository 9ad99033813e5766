package utils

import (
	"testing"
)

func TestTruncate(t *testing.T) {
	if Truncate("hello", 10) != "hello" {
		t.Error("short string unchanged")
	}
	if Truncate("hello world", 5) != "hello..." {
		t.Errorf("got %s", Truncate("hello world", 5))
	}
	if Truncate("x", 0) != "x" {
		t.Error("maxLen 0 returns as-is")
	}
}

func TestTruncate_runeBoundary(t *testing.T) {
	got := Truncate("héllo wörld", 6)
	if got != "héllo ..." {
		t.Errorf("got %q", got)
	}
	got = Truncate("日本語のテキスト", 3)
	if got != "日本語..." {
		t.Errorf("got %q", got)
	}
}
