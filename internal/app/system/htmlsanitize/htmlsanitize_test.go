package htmlsanitize_test

import (
	"strings"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/htmlsanitize"
)

func TestSanitize(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		want  string
		keeps string
		drops string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain text", in: "Hello, World!", want: "Hello, World!"},
		{name: "emphasis", in: "<p><strong>Bold</strong> and <em>italic</em></p>", want: "<p><strong>Bold</strong> and <em>italic</em></p>"},
		{name: "list", in: "<ul><li>Item 1</li><li>Item 2</li></ul>", want: "<ul><li>Item 1</li><li>Item 2</li></ul>"},
		{name: "code block", in: "<pre><code>func main() {}</code></pre>", want: "<pre><code>func main() {}</code></pre>"},
		{name: "script removed", in: "<p>Hello</p><script>alert('xss')</script>", want: "<p>Hello</p>"},
		{name: "onclick removed", in: `<button onclick="alert('xss')">Click</button>`, drops: "onclick"},
		{name: "javascript href removed", in: `<a href="javascript:alert('xss')">Click</a>`, drops: "javascript:"},
		{name: "safe link kept", in: `<a href="https://example.com">Link</a>`, keeps: `href="https://example.com"`},
		{name: "iframe removed", in: `<p>Content</p><iframe src="https://evil.com"></iframe>`, drops: "iframe", keeps: "Content"},
		{name: "form removed", in: `<form action="/x"><input name="d"></form>`, drops: "<form"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := htmlsanitize.Sanitize(tt.in)
			if tt.keeps == "" && tt.drops == "" && got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if tt.keeps != "" && !strings.Contains(got, tt.keeps) {
				t.Errorf("Sanitize(%q) = %q, expected to keep %q", tt.in, got, tt.keeps)
			}
			if tt.drops != "" && strings.Contains(got, tt.drops) {
				t.Errorf("Sanitize(%q) = %q, expected to drop %q", tt.in, got, tt.drops)
			}
		})
	}
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"Fix login", "Fix login"},
		{`<b>Fix</b> "login" & logout`, `Fix "login" & logout`},
		{"<script>alert(1)</script>Deploy", "Deploy"},
		{`<img src=x onerror="alert(1)">Ship it`, "Ship it"},
		{"  padded  ", "padded"},
		{"5 < 10", "5 < 10"},
	}
	for _, tt := range tests {
		if got := htmlsanitize.PlainText(tt.in); got != tt.want {
			t.Errorf("PlainText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsPlainText(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"Hello", true},
		{"<p>Hello</p>", false},
		{"5 < 10", true},
		{"5 > 3", true},
	}
	for _, tt := range tests {
		if got := htmlsanitize.IsPlainText(tt.in); got != tt.want {
			t.Errorf("IsPlainText(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
