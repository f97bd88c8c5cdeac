package extractous

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// TestLoadConfigFromFileYAML verifies every section of a YAML file is
// applied.
func TestLoadConfigFromFileYAML(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "extractous.yaml", `
extract_string_max_length: 5000
encoding: UTF-16BE
xml_output: true
stream_buffer_size: 4096
pdf:
  ocr_strategy: OCR_ONLY
  extract_annotation_text: false
office:
  extract_macros: true
  include_slide_notes: false
ocr:
  density: 150
  depth: 8
  timeout_seconds: 0
  language: deu
  apply_rotation: true
`)

	ex, err := LoadConfigFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5000, ex.ExtractStringMaxLength())
	assert.Equal(t, CharSetUTF16BE, ex.Encoding())
	assert.True(t, ex.XMLOutput())
	assert.Equal(t, 4096, ex.StreamBufferSize())

	assert.Equal(t, PdfOcrOnly, ex.PdfConfig().OcrStrategy())
	assert.False(t, ex.PdfConfig().ExtractAnnotationText())
	assert.False(t, ex.PdfConfig().ExtractMarkedContent())

	assert.True(t, ex.OfficeConfig().ExtractMacros())
	assert.False(t, ex.OfficeConfig().IncludeSlideNotes())
	assert.True(t, ex.OfficeConfig().IncludeHeadersAndFooters())

	assert.Equal(t, 150, ex.OcrConfig().Density())
	assert.Equal(t, 8, ex.OcrConfig().Depth())
	assert.Equal(t, 0, ex.OcrConfig().TimeoutSeconds())
	assert.Equal(t, "deu", ex.OcrConfig().Language())
	assert.True(t, ex.OcrConfig().ApplyRotation())

	s := ex.settings()
	assert.Nil(t, s.OCR.EnableImagePreprocessing, "options absent from the file stay unset")
}

// TestLoadConfigFromFileJSON verifies JSON files load through the same path.
func TestLoadConfigFromFileJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "extractous.json",
		`{"extract_string_max_length": 0, "pdf": {"ocr_strategy": "NO_OCR"}}`)

	ex, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 0, ex.ExtractStringMaxLength())
	assert.Equal(t, PdfOcrNoOCR, ex.PdfConfig().OcrStrategy())
}

// TestLoadConfigFromFileEmpty verifies an empty file yields the defaults.
func TestLoadConfigFromFileEmpty(t *testing.T) {
	ex, err := LoadConfigFromFile(writeConfig(t, t.TempDir(), "extractous.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxLength, ex.ExtractStringMaxLength())
}

// TestLoadConfigFromFileInvalid verifies schema violations are config
// errors.
func TestLoadConfigFromFileInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"density out of range", "ocr:\n  density: 10\n"},
		{"negative max length", "extract_string_max_length: -5\n"},
		{"unknown key", "max_len: 5\n"},
		{"unknown nested key", "pdf:\n  ocr: true\n"},
		{"wrong type", "xml_output: sometimes\n"},
		{"bad strategy", "pdf:\n  ocr_strategy: SOMETIMES\n"},
		{"bad encoding", "encoding: EBCDIC\n"},
		{"empty language", "ocr:\n  language: \"\"\n"},
		{"not a mapping", "- a\n- b\n"},
		{"broken yaml", "pdf: [\n"},
	}
	dir := t.TempDir()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfigFromFile(writeConfig(t, dir, "extractous.yaml", tt.body))
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, ErrorKindConfig, cfgErr.Kind())
		})
	}
}

// TestLoadConfigFromFileMissing verifies path problems.
func TestLoadConfigFromFileMissing(t *testing.T) {
	_, err := LoadConfigFromFile("")
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)

	_, err = LoadConfigFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestDiscoverConfig verifies discovery walks up from a nested directory and
// prefers the nearest file.
func TestDiscoverConfig(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeConfig(t, root, "extractous.json", `{"extract_string_max_length": 7}`)

	ex, err := discoverConfig(nested)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, 7, ex.ExtractStringMaxLength())

	writeConfig(t, filepath.Join(root, "a"), "extractous.yml", "extract_string_max_length: 3\n")
	ex, err = discoverConfig(nested)
	require.NoError(t, err)
	require.NotNil(t, ex)
	assert.Equal(t, 3, ex.ExtractStringMaxLength())
}

// TestDiscoverConfigNone verifies a tree without config files yields nil.
func TestDiscoverConfigNone(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "extractous.yaml"), 0o755))

	ex, err := discoverConfig(dir)
	if ex != nil {
		// A config file further up the real file system was found.
		t.Skip("ambient extractous config above the temp dir")
	}
	require.NoError(t, err)
}
