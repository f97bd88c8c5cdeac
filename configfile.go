package extractous

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema/config.schema.json
var configSchemaJSON []byte

// ConfigFileNames are the names ConfigDiscover looks for, in order.
var ConfigFileNames = []string{"extractous.yaml", "extractous.yml", "extractous.json"}

var (
	configSchemaOnce sync.Once
	configSchema     *jsonschema.Schema
	configSchemaErr  error
)

func compiledConfigSchema() (*jsonschema.Schema, error) {
	configSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource("config.schema.json", bytes.NewReader(configSchemaJSON)); err != nil {
			configSchemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		configSchema, configSchemaErr = compiler.Compile("config.schema.json")
	})
	return configSchema, configSchemaErr
}

type fileConfig struct {
	MaxLength  *int              `json:"extract_string_max_length"`
	Encoding   *string           `json:"encoding"`
	XMLOutput  *bool             `json:"xml_output"`
	BufferSize *int              `json:"stream_buffer_size"`
	PDF        *pdfFileConfig    `json:"pdf"`
	Office     *officeFileConfig `json:"office"`
	OCR        *ocrFileConfig    `json:"ocr"`
}

type pdfFileConfig struct {
	OCRStrategy                   *string `json:"ocr_strategy"`
	ExtractInlineImages           *bool   `json:"extract_inline_images"`
	ExtractUniqueInlineImagesOnly *bool   `json:"extract_unique_inline_images_only"`
	ExtractMarkedContent          *bool   `json:"extract_marked_content"`
	ExtractAnnotationText         *bool   `json:"extract_annotation_text"`
}

type officeFileConfig struct {
	ExtractMacros                 *bool `json:"extract_macros"`
	IncludeDeletedContent         *bool `json:"include_deleted_content"`
	IncludeMoveFromContent        *bool `json:"include_move_from_content"`
	IncludeShapeBasedContent      *bool `json:"include_shape_based_content"`
	IncludeHeadersAndFooters      *bool `json:"include_headers_and_footers"`
	IncludeMissingRows            *bool `json:"include_missing_rows"`
	IncludeSlideNotes             *bool `json:"include_slide_notes"`
	IncludeSlideMasterContent     *bool `json:"include_slide_master_content"`
	ConcatenatePhoneticRuns       *bool `json:"concatenate_phonetic_runs"`
	ExtractAllAlternativesFromMsg *bool `json:"extract_all_alternatives_from_msg"`
}

type ocrFileConfig struct {
	Density                  *int    `json:"density"`
	Depth                    *int    `json:"depth"`
	TimeoutSeconds           *int    `json:"timeout_seconds"`
	EnableImagePreprocessing *bool   `json:"enable_image_preprocessing"`
	ApplyRotation            *bool   `json:"apply_rotation"`
	Language                 *string `json:"language"`
}

// LoadConfigFromFile reads an Extractor configuration from a YAML or JSON
// file. JSON is accepted by the YAML decoder, so the extension only matters
// for discovery. The document is validated against the embedded schema
// before any option is applied.
func LoadConfigFromFile(path string) (Extractor, error) {
	if strings.TrimSpace(path) == "" {
		return Extractor{}, newConfigError("config path", "must not be empty")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Extractor{}, newIOError("read config "+path, err)
	}
	return parseConfig(path, data)
}

func parseConfig(path string, data []byte) (Extractor, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Extractor{}, newConfigError(path, err.Error())
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// Round trip through JSON so the schema sees plain JSON values.
	raw, err := json.Marshal(doc)
	if err != nil {
		return Extractor{}, newConfigError(path, err.Error())
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Extractor{}, newConfigError(path, err.Error())
	}

	schema, err := compiledConfigSchema()
	if err != nil {
		return Extractor{}, newRuntimeError("compile config schema", err)
	}
	if err := schema.Validate(v); err != nil {
		return Extractor{}, newConfigError(path, "does not match schema: "+err.Error())
	}

	var fc fileConfig
	if err := json.Unmarshal(raw, &fc); err != nil {
		return Extractor{}, newConfigError(path, err.Error())
	}
	e := fc.apply(New())
	if err := e.Err(); err != nil {
		return Extractor{}, err
	}
	return e, nil
}

func (fc fileConfig) apply(e Extractor) Extractor {
	if fc.MaxLength != nil {
		e = e.SetExtractStringMaxLength(*fc.MaxLength)
	}
	if fc.Encoding != nil {
		e = e.SetEncoding(CharSet(*fc.Encoding))
	}
	if fc.XMLOutput != nil {
		e = e.SetXMLOutput(*fc.XMLOutput)
	}
	if fc.BufferSize != nil {
		e = e.SetStreamBufferSize(*fc.BufferSize)
	}
	if fc.PDF != nil {
		e = e.SetPdfConfig(fc.PDF.apply(NewPdfParserConfig()))
	}
	if fc.Office != nil {
		e = e.SetOfficeConfig(fc.Office.apply(NewOfficeParserConfig()))
	}
	if fc.OCR != nil {
		e = e.SetOcrConfig(fc.OCR.apply(NewTesseractOcrConfig()))
	}
	return e
}

func applyBool[C any](c C, v *bool, set func(C, bool) C) C {
	if v == nil {
		return c
	}
	return set(c, *v)
}

func (p pdfFileConfig) apply(c PdfParserConfig) PdfParserConfig {
	if p.OCRStrategy != nil {
		c = c.SetOcrStrategy(PdfOcrStrategy(*p.OCRStrategy))
	}
	c = applyBool(c, p.ExtractInlineImages, PdfParserConfig.SetExtractInlineImages)
	c = applyBool(c, p.ExtractUniqueInlineImagesOnly, PdfParserConfig.SetExtractUniqueInlineImagesOnly)
	c = applyBool(c, p.ExtractMarkedContent, PdfParserConfig.SetExtractMarkedContent)
	return applyBool(c, p.ExtractAnnotationText, PdfParserConfig.SetExtractAnnotationText)
}

func (o officeFileConfig) apply(c OfficeParserConfig) OfficeParserConfig {
	c = applyBool(c, o.ExtractMacros, OfficeParserConfig.SetExtractMacros)
	c = applyBool(c, o.IncludeDeletedContent, OfficeParserConfig.SetIncludeDeletedContent)
	c = applyBool(c, o.IncludeMoveFromContent, OfficeParserConfig.SetIncludeMoveFromContent)
	c = applyBool(c, o.IncludeShapeBasedContent, OfficeParserConfig.SetIncludeShapeBasedContent)
	c = applyBool(c, o.IncludeHeadersAndFooters, OfficeParserConfig.SetIncludeHeadersAndFooters)
	c = applyBool(c, o.IncludeMissingRows, OfficeParserConfig.SetIncludeMissingRows)
	c = applyBool(c, o.IncludeSlideNotes, OfficeParserConfig.SetIncludeSlideNotes)
	c = applyBool(c, o.IncludeSlideMasterContent, OfficeParserConfig.SetIncludeSlideMasterContent)
	c = applyBool(c, o.ConcatenatePhoneticRuns, OfficeParserConfig.SetConcatenatePhoneticRuns)
	return applyBool(c, o.ExtractAllAlternativesFromMsg, OfficeParserConfig.SetExtractAllAlternativesFromMsg)
}

func (o ocrFileConfig) apply(c TesseractOcrConfig) TesseractOcrConfig {
	if o.Density != nil {
		c = c.SetDensity(*o.Density)
	}
	if o.Depth != nil {
		c = c.SetDepth(*o.Depth)
	}
	if o.TimeoutSeconds != nil {
		c = c.SetTimeoutSeconds(*o.TimeoutSeconds)
	}
	if o.Language != nil {
		c = c.SetLanguage(*o.Language)
	}
	c = applyBool(c, o.EnableImagePreprocessing, TesseractOcrConfig.SetEnableImagePreprocessing)
	return applyBool(c, o.ApplyRotation, TesseractOcrConfig.SetApplyRotation)
}

// ConfigDiscover searches the working directory and its parents for one of
// ConfigFileNames and loads the first match. It returns nil without error if
// no config file is found.
func ConfigDiscover() (*Extractor, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, newIOError("failed to get current directory", err)
	}
	return discoverConfig(dir)
}

func discoverConfig(dir string) (*Extractor, error) {
	for {
		for _, name := range ConfigFileNames {
			configPath := filepath.Join(dir, name)
			info, err := os.Stat(configPath)
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				return nil, newIOError("stat "+configPath, err)
			}
			if info.IsDir() {
				continue
			}
			e, err := LoadConfigFromFile(configPath)
			if err != nil {
				return nil, err
			}
			return &e, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return nil, nil
		}
		dir = parent
	}
}
