// Package extractous extracts text and metadata from documents by driving
// Apache Tika inside an embedded Java virtual machine.
//
// Format detection, parsing and OCR are done by the engine. This package owns
// the bridge: it starts the VM on first use, attaches each calling thread,
// builds the parser's object graph for every call and converts strings,
// metadata and exceptions back into Go values.
//
// # Runtime setup
//
// The bridge is compiled only with the jni build tag and needs cgo:
//
//	go build -tags jni ./...
//
// The runtime is configured from the environment:
//
//	EXTRACTOUS_JVM_LIB          shared library exporting JNI_CreateJavaVM
//	JAVA_HOME                   fallback location of libjvm
//	EXTRACTOUS_CLASSPATH        class path containing tika-app
//	EXTRACTOUS_JVM_OPTS         extra VM options, whitespace separated
//
// Without the tag every extraction fails with a RuntimeError.
//
// # Quick Start
//
//	text, err := extractous.New().ExtractFileToString("report.pdf")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(text)
//
// # Configuration
//
// Extractor and the parser configs are immutable values; each setter returns
// a copy:
//
//	ex := extractous.New().
//		SetExtractStringMaxLength(10000).
//		SetPdfConfig(extractous.NewPdfParserConfig().SetOcrStrategy(extractous.PdfOcrNoOCR)).
//		SetOcrConfig(extractous.NewTesseractOcrConfig().SetLanguage("deu"))
//	if err := ex.Err(); err != nil {
//		log.Fatal(err)
//	}
//
// Invalid values are recorded by the setter and reported by Err and by every
// extraction call. LoadConfigFromFile and ConfigDiscover read the same options
// from extractous.yaml or extractous.json.
//
// # Streaming
//
// ExtractFile, ExtractURL and ExtractBytes return a *StreamReader that pulls
// text from the engine while it parses. The max length does not apply.
//
//	r, md, err := ex.ExtractFile("big.docx")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer r.Close()
//	fmt.Println(md.Get(extractous.MetaContentType))
//	io.Copy(os.Stdout, r.UTF8())
//
// # Concurrency
//
// Extractors are safe for concurrent use. Each call pins its goroutine to an
// OS thread while it is inside the engine. The Context variants return early
// when the context is done, but the engine call itself cannot be interrupted
// and runs to completion in the background.
//
// # Errors
//
// All errors implement ExtractError. Use errors.As with *IOError, *ParseError,
// *ConfigError or *RuntimeError to branch on the failure category.
package extractous
