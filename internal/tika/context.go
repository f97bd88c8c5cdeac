package tika

import (
	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm"
)

// newParseContext builds the ParseContext for one call. The parser is
// registered for embedded documents and each per-format config object is
// created only when at least one of its options was set.
func newParseContext(env *jvm.Env, parser jvm.Ref, s Settings) (jvm.Ref, error) {
	ctor, err := env.Method(ClassParseContext, "<init>", sigVoid)
	if err != nil {
		return jvm.Ref{}, err
	}
	ctx, err := env.NewObject(ctor)
	if err != nil {
		return jvm.Ref{}, err
	}
	set, err := env.Method(ClassParseContext, "set", sigContextSet)
	if err != nil {
		return jvm.Ref{}, err
	}
	register := func(class string, obj jvm.Ref) error {
		cls, err := env.Class(class)
		if err != nil {
			return err
		}
		return env.CallVoid(ctx, set, jvm.Object(cls), jvm.Object(obj))
	}

	if err := register(ClassParser, parser); err != nil {
		return jvm.Ref{}, err
	}
	if !s.PDF.empty() {
		cfg, err := pdfConfig(env, s.PDF)
		if err != nil {
			return jvm.Ref{}, err
		}
		if err := register(ClassPDFParserConfig, cfg); err != nil {
			return jvm.Ref{}, err
		}
	}
	if !s.Office.empty() {
		cfg, err := newConfigObject(env, ClassOfficeParserConfig, s.Office.bools(), nil)
		if err != nil {
			return jvm.Ref{}, err
		}
		if err := register(ClassOfficeParserConfig, cfg); err != nil {
			return jvm.Ref{}, err
		}
	}
	if !s.OCR.empty() {
		cfg, err := ocrConfig(env, s.OCR)
		if err != nil {
			return jvm.Ref{}, err
		}
		if err := register(ClassTesseractOCRConfig, cfg); err != nil {
			return jvm.Ref{}, err
		}
	}
	return ctx, nil
}

// newConfigObject constructs class with its no-arg constructor and applies
// the set boolean and int options, one setter call each.
func newConfigObject(env *jvm.Env, class string, bools []boolSetter, ints []intSetter) (jvm.Ref, error) {
	ctor, err := env.Method(class, "<init>", sigVoid)
	if err != nil {
		return jvm.Ref{}, err
	}
	obj, err := env.NewObject(ctor)
	if err != nil {
		return jvm.Ref{}, err
	}
	for _, b := range bools {
		if b.value == nil {
			continue
		}
		m, err := env.Method(class, b.method, sigBool)
		if err != nil {
			return jvm.Ref{}, err
		}
		if err := env.CallVoid(obj, m, jvm.Bool(*b.value)); err != nil {
			return jvm.Ref{}, err
		}
	}
	for _, i := range ints {
		if i.value == nil {
			continue
		}
		m, err := env.Method(class, i.method, sigInt)
		if err != nil {
			return jvm.Ref{}, err
		}
		if err := env.CallVoid(obj, m, jvm.Int(int32(*i.value))); err != nil {
			return jvm.Ref{}, err
		}
	}
	return obj, nil
}

func pdfConfig(env *jvm.Env, p *PDFSettings) (jvm.Ref, error) {
	cfg, err := newConfigObject(env, ClassPDFParserConfig, p.bools(), nil)
	if err != nil {
		return jvm.Ref{}, err
	}
	if p.OCRStrategy == nil {
		return cfg, nil
	}
	f, err := env.StaticField(ClassOCRStrategy, ocrStrategyName(*p.OCRStrategy), sigOCRStrategy)
	if err != nil {
		return jvm.Ref{}, err
	}
	v, err := env.GetStaticField(f)
	if err != nil {
		return jvm.Ref{}, err
	}
	setOCR, err := env.Method(ClassPDFParserConfig, "setOcrStrategy", sigSetOCR)
	if err != nil {
		return jvm.Ref{}, err
	}
	if err := env.CallVoid(cfg, setOCR, jvm.Object(env.Local(v))); err != nil {
		return jvm.Ref{}, err
	}
	return cfg, nil
}

func ocrConfig(env *jvm.Env, o *OCRSettings) (jvm.Ref, error) {
	cfg, err := newConfigObject(env, ClassTesseractOCRConfig, o.bools(), o.ints())
	if err != nil {
		return jvm.Ref{}, err
	}
	if o.Language == nil {
		return cfg, nil
	}
	setLang, err := env.Method(ClassTesseractOCRConfig, "setLanguage", sigString)
	if err != nil {
		return jvm.Ref{}, err
	}
	lang, err := env.StringArg(*o.Language)
	if err != nil {
		return jvm.Ref{}, err
	}
	if err := env.CallVoid(cfg, setLang, lang); err != nil {
		return jvm.Ref{}, err
	}
	return cfg, nil
}
