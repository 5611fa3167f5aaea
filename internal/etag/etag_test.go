package etag

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashReaderSinglePart(t *testing.T) {
	t.Run("empty content", func(t *testing.T) {
		tag, err := HashReader(strings.NewReader(""))
		require.NoError(t, err)

		sum := md5.Sum(nil)
		assert.Equal(t, fmt.Sprintf("%x", sum), tag)
		assert.NotContains(t, tag, "-")
	})

	t.Run("small content is a plain md5", func(t *testing.T) {
		content := []byte("Hello, World!")
		tag, err := HashReader(bytes.NewReader(content))
		require.NoError(t, err)

		sum := md5.Sum(content)
		assert.Equal(t, fmt.Sprintf("%x", sum), tag)
	})

	t.Run("exactly one part has no suffix", func(t *testing.T) {
		content := bytes.Repeat([]byte{0xab}, PartSize)
		tag, err := HashReader(bytes.NewReader(content))
		require.NoError(t, err)

		sum := md5.Sum(content)
		assert.Equal(t, fmt.Sprintf("%x", sum), tag)
	})
}

func TestHashReaderMultipart(t *testing.T) {
	t.Run("one byte over a part boundary", func(t *testing.T) {
		content := bytes.Repeat([]byte{0x11}, PartSize+1)
		tag, err := HashReader(bytes.NewReader(content))
		require.NoError(t, err)

		first := md5.Sum(content[:PartSize])
		second := md5.Sum(content[PartSize:])
		combined := md5.Sum(append(first[:], second[:]...))
		assert.Equal(t, fmt.Sprintf("%x-2", combined), tag)
	})

	t.Run("part count matches the suffix", func(t *testing.T) {
		content := bytes.Repeat([]byte{0x42}, 2*PartSize+100)
		tag, err := HashReader(bytes.NewReader(content))
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(tag, "-3"), "expected a 3-part etag, got %s", tag)
	})

	t.Run("deterministic across calls", func(t *testing.T) {
		content := bytes.Repeat([]byte{0x99}, PartSize+512)
		a, err := HashReader(bytes.NewReader(content))
		require.NoError(t, err)
		b, err := HashReader(bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})
}

func TestHashFile(t *testing.T) {
	t.Run("matches the reader hash", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "asset.bin")
		content := []byte("some asset bytes")
		require.NoError(t, os.WriteFile(path, content, 0o644))

		fromFile, err := HashFile(path)
		require.NoError(t, err)
		fromReader, err := HashReader(bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, fromReader, fromFile)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := HashFile(filepath.Join(t.TempDir(), "nope"))
		assert.Error(t, err)
	})
}
