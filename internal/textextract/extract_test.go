package textextract

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupported(t *testing.T) {
	assert.True(t, Supported("text/plain"))
	assert.True(t, Supported("text/markdown; charset=utf-8"))
	assert.True(t, Supported("application/json"))
	assert.True(t, Supported("TEXT/CSV"))
	assert.False(t, Supported("application/pdf"))
}

func TestExtract(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		got, err := Extract("text/plain", []byte("  hello world \n"))
		require.NoError(t, err)
		assert.Equal(t, "hello world", got)
	})

	t.Run("json is reindented", func(t *testing.T) {
		got, err := Extract("application/json", []byte(`{"a":1}`))
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"a\": 1\n}", got)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Extract("application/json", []byte(`{"a":`))
		assert.Error(t, err)
	})

	t.Run("pdf is unsupported", func(t *testing.T) {
		_, err := Extract("application/pdf", []byte("%PDF-1.7"))
		assert.True(t, errors.Is(err, ErrUnsupportedType))
	})

	t.Run("binary data", func(t *testing.T) {
		_, err := Extract("text/plain", []byte{0xff, 0xfe, 0xfd})
		assert.Error(t, err)
	})
}

func TestMarkdown(t *testing.T) {
	source := []byte("# Access Control Policy\n\nAll access is reviewed **quarterly**.\nSee <https://example.com/policy>.\n\n- MFA required\n- SSO via Okta\n\n```\nterraform apply\n```\n")

	got := Markdown(source)

	assert.Contains(t, got, "Access Control Policy")
	assert.Contains(t, got, "All access is reviewed quarterly. See https://example.com/policy.")
	assert.Contains(t, got, "MFA required")
	assert.Contains(t, got, "SSO via Okta")
	assert.Contains(t, got, "terraform apply")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "# ")
	assert.NotContains(t, got, "\n\n\n")
}

func TestChunk(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Nil(t, Chunk("   ", 100, 20))
	})

	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"short text"}, Chunk("short text", 100, 20))
	})

	t.Run("long text is split with overlap", func(t *testing.T) {
		words := make([]string, 600)
		for i := range words {
			words[i] = "control"
		}
		text := strings.Join(words, " ")

		chunks := Chunk(text, DefaultChunkSize, DefaultChunkOverlap)
		require.Greater(t, len(chunks), 1)

		for _, c := range chunks {
			assert.LessOrEqual(t, utf8.RuneCountInString(c), DefaultChunkSize)
			assert.False(t, strings.HasPrefix(c, "ontrol"), "chunk starts mid-word")
		}

		// overlap means the total covered length exceeds the input
		total := 0
		for _, c := range chunks {
			total += len(c)
		}
		assert.Greater(t, total, len(text))
	})

	t.Run("text without spaces still progresses", func(t *testing.T) {
		chunks := Chunk(strings.Repeat("x", 250), 100, 20)
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 100)
	})

	t.Run("invalid overlap is ignored", func(t *testing.T) {
		chunks := Chunk(strings.Repeat("y", 300), 100, 150)
		assert.Len(t, chunks, 3)
	})
}
