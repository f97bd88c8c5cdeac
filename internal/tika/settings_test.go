package tika

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
		cut  bool
	}{
		{"", 3, "", false},
		{"abc", 3, "abc", false},
		{"abcd", 3, "abc", true},
		{"héllo", 2, "hé", true},
		{"héllo", 5, "héllo", false},
		{"😀😀", 1, "😀", true},
		{"abc", 0, "", true},
	}
	for _, tt := range tests {
		got, cut := truncateRunes(tt.in, tt.n)
		assert.Equal(t, tt.want, got, "truncateRunes(%q, %d)", tt.in, tt.n)
		assert.Equal(t, tt.cut, cut, "truncateRunes(%q, %d)", tt.in, tt.n)
	}
}

func TestSettingsDefaults(t *testing.T) {
	var s Settings
	assert.Equal(t, "UTF-8", s.charset())
	assert.Equal(t, DefaultBufferSize, s.bufferSize())
	assert.Equal(t, int32(0), s.writeLimit())

	s = Settings{MaxLength: -1, Charset: "UTF-16BE", BufferSize: 10}
	assert.Equal(t, "UTF-16BE", s.charset())
	assert.Equal(t, 10, s.bufferSize())
	assert.Equal(t, int32(-1), s.writeLimit())

	s.MaxLength = 1 << 40
	assert.Equal(t, int32(-1), s.writeLimit(), "limits beyond int32 mean unlimited")
}

func TestSettingsEmpty(t *testing.T) {
	var (
		pdf    *PDFSettings
		office *OfficeSettings
		ocr    *OCRSettings
	)
	assert.True(t, pdf.empty())
	assert.True(t, office.empty())
	assert.True(t, ocr.empty())
	assert.True(t, (&PDFSettings{}).empty())
	assert.True(t, (&OCRSettings{}).empty())

	strategy, on, lang, depth := "AUTO", true, "eng", 8
	assert.False(t, (&PDFSettings{OCRStrategy: &strategy}).empty())
	assert.False(t, (&PDFSettings{ExtractMarkedContent: &on}).empty())
	assert.False(t, (&OfficeSettings{IncludeMissingRows: &on}).empty())
	assert.False(t, (&OCRSettings{Language: &lang}).empty())
	assert.False(t, (&OCRSettings{Depth: &depth}).empty())
	assert.False(t, (&OCRSettings{ApplyRotation: &on}).empty())
}

func TestOCRStrategyName(t *testing.T) {
	assert.Equal(t, "OCR_ONLY", ocrStrategyName("ocr_only"))
	assert.Equal(t, "NO_OCR", ocrStrategyName(" No_Ocr "))
}

func TestInputDescriptions(t *testing.T) {
	tests := []struct {
		in       Input
		name     string
		str      string
		validErr bool
	}{
		{FileInput("/data/in/report.pdf"), "report.pdf", "file:/data/in/report.pdf", false},
		{URLInput("https://example.com/a/b.docx?x=1"), "b.docx", "url:https://example.com/a/b.docx?x=1", false},
		{URLInput("https://example.com/"), "", "url:https://example.com/", false},
		{BytesInput(make([]byte, 12)), "", "bytes[12]", false},
		{Input{Kind: KindBytes, Name: "given.txt"}, "given.txt", "bytes[0]", false},
		{FileInput(""), ".", "file:", true},
		{Input{Kind: InputKind(9)}, "", "input(9)", true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.name, tt.in.ResourceName(), tt.str)
		assert.Equal(t, tt.str, tt.in.String())
		err := tt.in.Validate()
		if tt.validErr {
			assert.ErrorIs(t, err, ErrOpenInput, tt.str)
		} else {
			assert.NoError(t, err, tt.str)
		}
	}
}
