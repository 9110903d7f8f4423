package internal

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

type testStruct struct {
	Name string
	ID   int
}

func TestFileSerialization(t *testing.T) {
	tmpfile, err := os.CreateTemp(t.TempDir(), "test-serialize-*.bin")
	assert.NoError(t, err)
	defer tmpfile.Close()

	original := testStruct{Name: "Test", ID: 123}

	err = SerializeToFile(original, tmpfile)
	assert.NoError(t, err)

	// Reset file pointer for reading
	_, err = tmpfile.Seek(0, 0)
	assert.NoError(t, err)

	var deserialized testStruct
	err = DeserializeFromFile(tmpfile, &deserialized)
	assert.NoError(t, err)

	assert.Equal(t, original, deserialized)
}

func TestWriteAll(t *testing.T) {
	tmpfile, err := os.CreateTemp(t.TempDir(), "test-writeall-*.txt")
	assert.NoError(t, err)
	defer tmpfile.Close()

	content := []byte("this is a test content for WriteAll")
	n, err := WriteAll(tmpfile, content)
	assert.NoError(t, err)
	assert.Equal(t, len(content), n)

	// Read back and verify
	readContent, err := os.ReadFile(tmpfile.Name())
	assert.NoError(t, err)
	assert.Equal(t, content, readContent)
}

func TestWriteReadCloserToFile(t *testing.T) {
	content := "this is a test for WriteReadCloserToFile"
	reader := io.NopCloser(strings.NewReader(content))

	tmpfilePath := filepath.Join(t.TempDir(), "test-writerc.txt")

	n, err := WriteReadCloserToFile(reader, tmpfilePath)
	assert.NoError(t, err)
	assert.Equal(t, int64(len(content)), n)

	// Read back and verify
	readContent, err := os.ReadFile(tmpfilePath)
	assert.NoError(t, err)
	assert.Equal(t, []byte(content), readContent)
}

func TestExists(t *testing.T) {
	tmpfile, err := os.CreateTemp(t.TempDir(), "exists_test")
	assert.NoError(t, err)
	defer tmpfile.Close()

	assert.True(t, Exists(tmpfile.Name()))
	assert.False(t, Exists(tmpfile.Name()+".nonexistent"))
}
