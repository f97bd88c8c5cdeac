package extractous

import (
	"strings"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/tika"
)

// CharSet names the encoding of streamed output.
type CharSet string

// Supported output charsets.
const (
	CharSetUTF8    CharSet = "UTF-8"
	CharSetUSASCII CharSet = "US-ASCII"
	CharSetUTF16BE CharSet = "UTF-16BE"
)

// ParseCharSet accepts the canonical names case-insensitively.
func ParseCharSet(s string) (CharSet, bool) {
	switch CharSet(strings.ToUpper(strings.TrimSpace(s))) {
	case CharSetUTF8, "UTF8":
		return CharSetUTF8, true
	case CharSetUSASCII, "ASCII":
		return CharSetUSASCII, true
	case CharSetUTF16BE, "UTF16BE":
		return CharSetUTF16BE, true
	}
	return "", false
}

// PdfOcrStrategy selects when the PDF parser runs OCR.
type PdfOcrStrategy string

const (
	// PdfOcrNoOCR extracts the text layer only.
	PdfOcrNoOCR PdfOcrStrategy = "NO_OCR"
	// PdfOcrOnly renders every page and OCRs it, ignoring the text layer.
	PdfOcrOnly PdfOcrStrategy = "OCR_ONLY"
	// PdfOcrAndTextExtraction does both and concatenates the results.
	PdfOcrAndTextExtraction PdfOcrStrategy = "OCR_AND_TEXT_EXTRACTION"
	// PdfOcrAuto OCRs only pages with too little extractable text.
	PdfOcrAuto PdfOcrStrategy = "AUTO"
)

// ParsePdfOcrStrategy accepts the strategy names case-insensitively.
func ParsePdfOcrStrategy(s string) (PdfOcrStrategy, bool) {
	switch v := PdfOcrStrategy(strings.ToUpper(strings.TrimSpace(s))); v {
	case PdfOcrNoOCR, PdfOcrOnly, PdfOcrAndTextExtraction, PdfOcrAuto:
		return v, true
	}
	return "", false
}

func ptr[T any](v T) *T { return &v }

func valueOr[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

// PdfParserConfig configures the PDF parser. It is an immutable value: every
// setter returns a modified copy. Options left unset keep the engine default.
type PdfParserConfig struct {
	ocrStrategy                   *PdfOcrStrategy
	extractInlineImages           *bool
	extractUniqueInlineImagesOnly *bool
	extractMarkedContent          *bool
	extractAnnotationText         *bool
	err                           *ConfigError
}

// NewPdfParserConfig returns a config with every option at its default.
func NewPdfParserConfig() PdfParserConfig { return PdfParserConfig{} }

// SetOcrStrategy chooses whether pages are OCRed, extracted as text, or both.
func (c PdfParserConfig) SetOcrStrategy(s PdfOcrStrategy) PdfParserConfig {
	v, ok := ParsePdfOcrStrategy(string(s))
	if !ok {
		return c.fail("PdfParserConfig.OcrStrategy", "unknown strategy "+string(s))
	}
	c.ocrStrategy = &v
	return c
}

// SetExtractInlineImages extracts images embedded in pages as attachments.
func (c PdfParserConfig) SetExtractInlineImages(v bool) PdfParserConfig {
	c.extractInlineImages = &v
	return c
}

// SetExtractUniqueInlineImagesOnly skips inline images already seen in the
// document.
func (c PdfParserConfig) SetExtractUniqueInlineImagesOnly(v bool) PdfParserConfig {
	c.extractUniqueInlineImagesOnly = &v
	return c
}

// SetExtractMarkedContent keeps the marked-content structure of tagged PDFs.
func (c PdfParserConfig) SetExtractMarkedContent(v bool) PdfParserConfig {
	c.extractMarkedContent = &v
	return c
}

// SetExtractAnnotationText includes the text of annotations and form fields.
func (c PdfParserConfig) SetExtractAnnotationText(v bool) PdfParserConfig {
	c.extractAnnotationText = &v
	return c
}

// OcrStrategy returns the OCR strategy, PdfOcrAuto by default.
func (c PdfParserConfig) OcrStrategy() PdfOcrStrategy { return valueOr(c.ocrStrategy, PdfOcrAuto) }

// ExtractInlineImages reports whether inline images are extracted.
func (c PdfParserConfig) ExtractInlineImages() bool { return valueOr(c.extractInlineImages, false) }

// ExtractUniqueInlineImagesOnly reports whether repeated inline images are
// skipped.
func (c PdfParserConfig) ExtractUniqueInlineImagesOnly() bool {
	return valueOr(c.extractUniqueInlineImagesOnly, true)
}

// ExtractMarkedContent reports whether marked content is kept.
func (c PdfParserConfig) ExtractMarkedContent() bool { return valueOr(c.extractMarkedContent, false) }

// ExtractAnnotationText reports whether annotation text is included.
func (c PdfParserConfig) ExtractAnnotationText() bool { return valueOr(c.extractAnnotationText, true) }

// Err returns the first invalid value passed to a setter.
func (c PdfParserConfig) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

func (c PdfParserConfig) fail(field, msg string) PdfParserConfig {
	if c.err == nil {
		c.err = newConfigError(field, msg)
	}
	return c
}

func (c PdfParserConfig) settings() *tika.PDFSettings {
	s := &tika.PDFSettings{
		ExtractInlineImages:           c.extractInlineImages,
		ExtractUniqueInlineImagesOnly: c.extractUniqueInlineImagesOnly,
		ExtractMarkedContent:          c.extractMarkedContent,
		ExtractAnnotationText:         c.extractAnnotationText,
	}
	if c.ocrStrategy != nil {
		s.OCRStrategy = ptr(string(*c.ocrStrategy))
	}
	return s
}

// OfficeParserConfig configures the Microsoft Office parsers. It is an
// immutable value like PdfParserConfig.
type OfficeParserConfig struct {
	extractMacros                 *bool
	includeDeletedContent         *bool
	includeMoveFromContent        *bool
	includeShapeBasedContent      *bool
	includeHeadersAndFooters      *bool
	includeMissingRows            *bool
	includeSlideNotes             *bool
	includeSlideMasterContent     *bool
	concatenatePhoneticRuns       *bool
	extractAllAlternativesFromMsg *bool
}

// NewOfficeParserConfig returns a config with every option at its default.
func NewOfficeParserConfig() OfficeParserConfig { return OfficeParserConfig{} }

// SetExtractMacros extracts VBA macro source as embedded documents.
func (c OfficeParserConfig) SetExtractMacros(v bool) OfficeParserConfig {
	c.extractMacros = &v
	return c
}

// SetIncludeDeletedContent keeps text marked as deleted by change tracking.
func (c OfficeParserConfig) SetIncludeDeletedContent(v bool) OfficeParserConfig {
	c.includeDeletedContent = &v
	return c
}

// SetIncludeMoveFromContent keeps the source side of tracked moves.
func (c OfficeParserConfig) SetIncludeMoveFromContent(v bool) OfficeParserConfig {
	c.includeMoveFromContent = &v
	return c
}

// SetIncludeShapeBasedContent includes text held in shapes and text boxes.
func (c OfficeParserConfig) SetIncludeShapeBasedContent(v bool) OfficeParserConfig {
	c.includeShapeBasedContent = &v
	return c
}

// SetIncludeHeadersAndFooters includes document headers and footers.
func (c OfficeParserConfig) SetIncludeHeadersAndFooters(v bool) OfficeParserConfig {
	c.includeHeadersAndFooters = &v
	return c
}

// SetIncludeMissingRows emits empty rows for gaps in spreadsheets.
func (c OfficeParserConfig) SetIncludeMissingRows(v bool) OfficeParserConfig {
	c.includeMissingRows = &v
	return c
}

// SetIncludeSlideNotes includes speaker notes of presentations.
func (c OfficeParserConfig) SetIncludeSlideNotes(v bool) OfficeParserConfig {
	c.includeSlideNotes = &v
	return c
}

// SetIncludeSlideMasterContent includes text from slide masters.
func (c OfficeParserConfig) SetIncludeSlideMasterContent(v bool) OfficeParserConfig {
	c.includeSlideMasterContent = &v
	return c
}

// SetConcatenatePhoneticRuns appends phonetic runs to East Asian text in
// spreadsheets.
func (c OfficeParserConfig) SetConcatenatePhoneticRuns(v bool) OfficeParserConfig {
	c.concatenatePhoneticRuns = &v
	return c
}

// SetExtractAllAlternativesFromMsg also extracts the RTF and HTML bodies of
// Outlook messages, not just the first one found.
func (c OfficeParserConfig) SetExtractAllAlternativesFromMsg(v bool) OfficeParserConfig {
	c.extractAllAlternativesFromMsg = &v
	return c
}

// ExtractMacros reports whether macros are extracted.
func (c OfficeParserConfig) ExtractMacros() bool { return valueOr(c.extractMacros, false) }

// IncludeDeletedContent reports whether deleted text is kept.
func (c OfficeParserConfig) IncludeDeletedContent() bool { return valueOr(c.includeDeletedContent, false) }

// IncludeMoveFromContent reports whether moved-from text is kept.
func (c OfficeParserConfig) IncludeMoveFromContent() bool { return valueOr(c.includeMoveFromContent, false) }

// IncludeShapeBasedContent reports whether shape text is included.
func (c OfficeParserConfig) IncludeShapeBasedContent() bool {
	return valueOr(c.includeShapeBasedContent, true)
}

// IncludeHeadersAndFooters reports whether headers and footers are included.
func (c OfficeParserConfig) IncludeHeadersAndFooters() bool {
	return valueOr(c.includeHeadersAndFooters, true)
}

// IncludeMissingRows reports whether spreadsheet gaps produce empty rows.
func (c OfficeParserConfig) IncludeMissingRows() bool { return valueOr(c.includeMissingRows, false) }

// IncludeSlideNotes reports whether speaker notes are included.
func (c OfficeParserConfig) IncludeSlideNotes() bool { return valueOr(c.includeSlideNotes, true) }

// IncludeSlideMasterContent reports whether slide master text is included.
func (c OfficeParserConfig) IncludeSlideMasterContent() bool {
	return valueOr(c.includeSlideMasterContent, true)
}

// ConcatenatePhoneticRuns reports whether phonetic runs are appended.
func (c OfficeParserConfig) ConcatenatePhoneticRuns() bool {
	return valueOr(c.concatenatePhoneticRuns, true)
}

// ExtractAllAlternativesFromMsg reports whether every Outlook message body
// is extracted.
func (c OfficeParserConfig) ExtractAllAlternativesFromMsg() bool {
	return valueOr(c.extractAllAlternativesFromMsg, false)
}

// Err always returns nil; every office option accepts both values. It exists
// so all configs share the same validation surface.
func (c OfficeParserConfig) Err() error { return nil }

func (c OfficeParserConfig) settings() *tika.OfficeSettings {
	return &tika.OfficeSettings{
		ExtractMacros:                 c.extractMacros,
		IncludeDeletedContent:         c.includeDeletedContent,
		IncludeMoveFromContent:        c.includeMoveFromContent,
		IncludeShapeBasedContent:      c.includeShapeBasedContent,
		IncludeHeadersAndFooters:      c.includeHeadersAndFooters,
		IncludeMissingRows:            c.includeMissingRows,
		IncludeSlideNotes:             c.includeSlideNotes,
		IncludeSlideMasterContent:     c.includeSlideMasterContent,
		ConcatenatePhoneticRuns:       c.concatenatePhoneticRuns,
		ExtractAllAlternativesFromMsg: c.extractAllAlternativesFromMsg,
	}
}

// Tesseract option bounds.
const (
	MinOcrDensity = 72
	MaxOcrDensity = 1200
	MinOcrDepth   = 1
	MaxOcrDepth   = 64
)

// TesseractOcrConfig configures OCR through Tesseract. It is an immutable
// value like PdfParserConfig.
type TesseractOcrConfig struct {
	density                  *int
	depth                    *int
	timeoutSeconds           *int
	enableImagePreprocessing *bool
	applyRotation            *bool
	language                 *string
	err                      *ConfigError
}

// NewTesseractOcrConfig returns a config with every option at its default.
func NewTesseractOcrConfig() TesseractOcrConfig { return TesseractOcrConfig{} }

// SetDensity sets the rendering density in DPI, between 72 and 1200.
func (c TesseractOcrConfig) SetDensity(dpi int) TesseractOcrConfig {
	if dpi < MinOcrDensity || dpi > MaxOcrDensity {
		return c.fail("TesseractOcrConfig.Density", "must be between 72 and 1200")
	}
	c.density = &dpi
	return c
}

// SetDepth sets the image bit depth, between 1 and 64.
func (c TesseractOcrConfig) SetDepth(depth int) TesseractOcrConfig {
	if depth < MinOcrDepth || depth > MaxOcrDepth {
		return c.fail("TesseractOcrConfig.Depth", "must be between 1 and 64")
	}
	c.depth = &depth
	return c
}

// SetTimeoutSeconds bounds one OCR run; zero disables the timeout.
func (c TesseractOcrConfig) SetTimeoutSeconds(seconds int) TesseractOcrConfig {
	if seconds < 0 {
		return c.fail("TesseractOcrConfig.TimeoutSeconds", "must not be negative")
	}
	c.timeoutSeconds = &seconds
	return c
}

// SetEnableImagePreprocessing cleans images up with ImageMagick before OCR.
func (c TesseractOcrConfig) SetEnableImagePreprocessing(v bool) TesseractOcrConfig {
	c.enableImagePreprocessing = &v
	return c
}

// SetApplyRotation detects and corrects page rotation before OCR.
func (c TesseractOcrConfig) SetApplyRotation(v bool) TesseractOcrConfig {
	c.applyRotation = &v
	return c
}

// SetLanguage sets the Tesseract language, e.g. "eng" or "eng+deu".
func (c TesseractOcrConfig) SetLanguage(lang string) TesseractOcrConfig {
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return c.fail("TesseractOcrConfig.Language", "must not be empty")
	}
	c.language = &lang
	return c
}

// Density returns the rendering density in DPI, 300 by default.
func (c TesseractOcrConfig) Density() int { return valueOr(c.density, 300) }

// Depth returns the image bit depth, 4 by default.
func (c TesseractOcrConfig) Depth() int { return valueOr(c.depth, 4) }

// TimeoutSeconds returns the OCR timeout, 120 by default.
func (c TesseractOcrConfig) TimeoutSeconds() int { return valueOr(c.timeoutSeconds, 120) }

// EnableImagePreprocessing reports whether images are preprocessed.
func (c TesseractOcrConfig) EnableImagePreprocessing() bool {
	return valueOr(c.enableImagePreprocessing, false)
}

// ApplyRotation reports whether rotation is corrected.
func (c TesseractOcrConfig) ApplyRotation() bool { return valueOr(c.applyRotation, false) }

// Language returns the Tesseract language, "eng" by default.
func (c TesseractOcrConfig) Language() string { return valueOr(c.language, "eng") }

// Err returns the first invalid value passed to a setter.
func (c TesseractOcrConfig) Err() error {
	if c.err == nil {
		return nil
	}
	return c.err
}

func (c TesseractOcrConfig) fail(field, msg string) TesseractOcrConfig {
	if c.err == nil {
		c.err = newConfigError(field, msg)
	}
	return c
}

func (c TesseractOcrConfig) settings() *tika.OCRSettings {
	return &tika.OCRSettings{
		Density:                  c.density,
		Depth:                    c.depth,
		TimeoutSeconds:           c.timeoutSeconds,
		EnableImagePreprocessing: c.enableImagePreprocessing,
		ApplyRotation:            c.applyRotation,
		Language:                 c.language,
	}
}
