package segment

import (
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", ""},
		{"whitespace only", "  \n\t  ", ""},
		{"trim and collapse", "  a  b  ", "a b"},
		{"newlines collapse", "line one\nline two\n\nline three", "line one line two line three"},
		{"tabs collapse", "a\t\tb", "a b"},
		{"hyphen line break joins word", "iron absorp-\ntion works", "iron absorption works"},
		{"hyphen crlf joins word", "absorp-\r\ntion", "absorption"},
		{"hyphen break with indent joins word", "absorp-\n   tion", "absorption"},
		{"hyphen before uppercase kept", "the X-\nRay machine", "the X- Ray machine"},
		{"hyphen mid line kept", "well-known fact", "well-known fact"},
		{"hyphen at end kept", "dash-", "dash-"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
