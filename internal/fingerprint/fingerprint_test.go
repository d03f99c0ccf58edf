package fingerprint

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "plain text passes through",
			content: "hello world",
			want:    "hello world",
		},
		{
			name:    "whitespace collapsed",
			content: "hello\n\n  world\t!",
			want:    "hello world !",
		},
		{
			name:    "markup stripped",
			content: "<p>hello <strong>world</strong></p>",
			want:    "hello world",
		},
		{
			name:    "nested markup and entities",
			content: "<div><p>it&amp;s fine</p>\n<p>really</p></div>",
			want:    "it&s fine really",
		},
		{
			name:    "empty content",
			content: "",
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.content))
		})
	}
}

func TestHashStableAcrossCosmeticEdits(t *testing.T) {
	plain := Hash("hello world")

	assert.Equal(t, plain, Hash("hello   world"))
	assert.Equal(t, plain, Hash("<p>hello world</p>"))
	assert.Equal(t, plain, Hash("<p>hello</p> <p>world</p>"))
}

func TestHashChangesOnSemanticEdit(t *testing.T) {
	assert.NotEqual(t, Hash("hello world"), Hash("hello there"))
	// Case is semantic, not cosmetic.
	assert.NotEqual(t, Hash("hello world"), Hash("Hello world"))
}

func TestHashDeterministic(t *testing.T) {
	a := Hash("<h1>Chapter 1</h1><p>Once upon a time.</p>")
	b := Hash("<h1>Chapter 1</h1><p>Once upon a time.</p>")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}
