package normalize

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"empty", "", 140, ""},
		{"paragraphs", "<p>Read <b>Ch 4</b>&nbsp;&amp; answer Q1&ndash;Q5.</p>", 140, "Read Ch 4 & answer Q1–Q5."},
		{"truncates", "<p>" + strings.Repeat("a", 200) + "</p>", 10, "aaaaaaa..."},
		{"collapses whitespace", "  a\n\n\tb   c ", 140, "a b c"},
		{"comments and breaks", "one<br/>two<!-- hidden -->three", 140, "one two three"},
		{"quotes", "&ldquo;Hi&rdquo; &lsquo;there&rsquo; &quot;x&quot; it&#39;s", 140, `"Hi" 'there' "x" it's`},
		{"mdash", "a&mdash;b", 140, "a—b"},
		{"unknown entity kept", "caf&eacute;", 140, "caf&eacute;"},
		{"single pass decode", "&amp;lt;b&amp;gt;", 140, "&lt;b&gt;"},
		{"exact length not truncated", "abcde", 5, "abcde"},
		{"zero length", "abc", 0, ""},
		{"tiny bound", "abcdef", 2, "ab"},
		{"bare angle bracket", "3 < 4 and 5 > 4", 140, "3 < 4 and 5 > 4"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.in, tt.max); got != tt.want {
				t.Errorf("Text(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
			}
		})
	}
}

func TestTextProperties(t *testing.T) {
	inputs := []string{
		"<div class=\"x\"><p>Unit 3 <i>review</i></p><ul><li>one</li><li>two</li></ul></div>",
		"<table><tr><td>Tests</td><td>40%</td></tr></table>",
		strings.Repeat("<span>word</span> ", 300),
		"plain text with     gaps",
		"<script>var x = 1;</script>after",
	}
	for _, in := range inputs {
		for _, n := range []int{5, 20, 140, 5000} {
			out := Text(in, n)
			if utf8.RuneCountInString(out) > n {
				t.Errorf("Text(%q, %d) has %d runes", in, n, utf8.RuneCountInString(out))
			}
			if strings.ContainsAny(out, "<>") {
				t.Errorf("Text(%q, %d) = %q contains tag delimiters", in, n, out)
			}
			if out != strings.TrimSpace(out) {
				t.Errorf("Text(%q, %d) = %q has surrounding whitespace", in, n, out)
			}
			if strings.Contains(out, "  ") {
				t.Errorf("Text(%q, %d) = %q has repeated spaces", in, n, out)
			}
		}
	}
}

func TestTextIdempotent(t *testing.T) {
	for _, in := range []string{"hello world", "a b c d", "Chapter 4: the end"} {
		once := Text(in, 140)
		if twice := Text(once, 140); twice != once {
			t.Errorf("Text not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestTruncateMultibyte(t *testing.T) {
	got := Truncate("ééééééé", 5)
	if got != "éé..." {
		t.Errorf("Truncate = %q, want %q", got, "éé...")
	}
}

func TestTruncateShortLimit(t *testing.T) {
	for n, want := range map[int]string{1: ".", 2: "..", 3: "...", 4: "a..."} {
		if got := Truncate("abcdef", n); got != want {
			t.Errorf("Truncate(abcdef, %d) = %q, want %q", n, got, want)
		}
	}
	if got := Text("abcdef", 3); got != "..." {
		t.Errorf("Text(abcdef, 3) = %q", got)
	}
}

func TestClip(t *testing.T) {
	if got := Clip("abcdef", 3); got != "abc" {
		t.Errorf("Clip = %q", got)
	}
	if got := Clip("ab", 3); got != "ab" {
		t.Errorf("Clip = %q", got)
	}
}
