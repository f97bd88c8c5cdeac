package tika

import "strings"

// DefaultBufferSize is the managed byte[] used per stream read.
const DefaultBufferSize = 32 * 1024

// Settings is the engine-facing view of an extraction configuration. Nil
// pointers leave the engine default in force and produce no setter call.
type Settings struct {
	// MaxLength bounds the extracted text in characters. Negative means
	// unlimited; zero short-circuits without touching the engine.
	MaxLength int
	// Charset names the encoding of streamed output, e.g. "UTF-8".
	Charset string
	// XML selects XHTML output instead of plain text.
	XML bool
	// BufferSize is the managed read buffer for streams.
	BufferSize int

	PDF    *PDFSettings
	Office *OfficeSettings
	OCR    *OCRSettings
}

// PDFSettings maps onto PDFParserConfig.
type PDFSettings struct {
	// OCRStrategy is an OCR_STRATEGY constant name such as "AUTO".
	OCRStrategy                   *string
	ExtractInlineImages           *bool
	ExtractUniqueInlineImagesOnly *bool
	ExtractMarkedContent          *bool
	ExtractAnnotationText         *bool
}

// OfficeSettings maps onto OfficeParserConfig.
type OfficeSettings struct {
	ExtractMacros                 *bool
	IncludeDeletedContent         *bool
	IncludeMoveFromContent        *bool
	IncludeShapeBasedContent      *bool
	IncludeHeadersAndFooters      *bool
	IncludeMissingRows            *bool
	IncludeSlideNotes             *bool
	IncludeSlideMasterContent     *bool
	ConcatenatePhoneticRuns       *bool
	ExtractAllAlternativesFromMsg *bool
}

// OCRSettings maps onto TesseractOCRConfig.
type OCRSettings struct {
	Density                  *int
	Depth                    *int
	TimeoutSeconds           *int
	EnableImagePreprocessing *bool
	ApplyRotation            *bool
	Language                 *string
}

type boolSetter struct {
	method string
	value  *bool
}

type intSetter struct {
	method string
	value  *int
}

func (p *PDFSettings) bools() []boolSetter {
	return []boolSetter{
		{"setExtractInlineImages", p.ExtractInlineImages},
		{"setExtractUniqueInlineImagesOnly", p.ExtractUniqueInlineImagesOnly},
		{"setExtractMarkedContent", p.ExtractMarkedContent},
		{"setExtractAnnotationText", p.ExtractAnnotationText},
	}
}

func (o *OfficeSettings) bools() []boolSetter {
	return []boolSetter{
		{"setExtractMacros", o.ExtractMacros},
		{"setIncludeDeletedContent", o.IncludeDeletedContent},
		{"setIncludeMoveFromContent", o.IncludeMoveFromContent},
		{"setIncludeShapeBasedContent", o.IncludeShapeBasedContent},
		{"setIncludeHeadersAndFooters", o.IncludeHeadersAndFooters},
		{"setIncludeMissingRows", o.IncludeMissingRows},
		{"setIncludeSlideNotes", o.IncludeSlideNotes},
		{"setIncludeSlideMasterContent", o.IncludeSlideMasterContent},
		{"setConcatenatePhoneticRuns", o.ConcatenatePhoneticRuns},
		{"setExtractAllAlternativesFromMSG", o.ExtractAllAlternativesFromMsg},
	}
}

func (o *OCRSettings) ints() []intSetter {
	return []intSetter{
		{"setDensity", o.Density},
		{"setDepth", o.Depth},
		{"setTimeoutSeconds", o.TimeoutSeconds},
	}
}

func (o *OCRSettings) bools() []boolSetter {
	return []boolSetter{
		{"setEnableImagePreprocessing", o.EnableImagePreprocessing},
		{"setApplyRotation", o.ApplyRotation},
	}
}

func anyBool(setters []boolSetter) bool {
	for _, s := range setters {
		if s.value != nil {
			return true
		}
	}
	return false
}

func (p *PDFSettings) empty() bool {
	return p == nil || (p.OCRStrategy == nil && !anyBool(p.bools()))
}

func (o *OfficeSettings) empty() bool {
	return o == nil || !anyBool(o.bools())
}

func (o *OCRSettings) empty() bool {
	if o == nil {
		return true
	}
	for _, s := range o.ints() {
		if s.value != nil {
			return false
		}
	}
	return o.Language == nil && !anyBool(o.bools())
}

func (s Settings) charset() string {
	if s.Charset == "" {
		return "UTF-8"
	}
	return s.Charset
}

func (s Settings) bufferSize() int {
	if s.BufferSize <= 0 {
		return DefaultBufferSize
	}
	return s.BufferSize
}

// writeLimit is the value handed to the content sink; -1 disables the limit.
func (s Settings) writeLimit() int32 {
	if s.MaxLength < 0 || s.MaxLength > 1<<31-1 {
		return -1
	}
	return int32(s.MaxLength)
}

// ocrStrategyName normalizes "ocr_only" and friends to the enum constant.
func ocrStrategyName(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
