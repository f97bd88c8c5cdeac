package tika

// Engine classes and the member signatures the bridge resolves. A mismatch
// with the bundled engine surfaces as jvm.ResolutionError.
const (
	ClassAutoDetectParser       = "org/apache/tika/parser/AutoDetectParser"
	ClassParser                 = "org/apache/tika/parser/Parser"
	ClassParseContext           = "org/apache/tika/parser/ParseContext"
	ClassParsingReader          = "org/apache/tika/parser/ParsingReader"
	ClassMetadata               = "org/apache/tika/metadata/Metadata"
	ClassBodyContentHandler     = "org/apache/tika/sax/BodyContentHandler"
	ClassWriteOutContentHandler = "org/apache/tika/sax/WriteOutContentHandler"
	ClassToXMLContentHandler    = "org/apache/tika/sax/ToXMLContentHandler"
	ClassTikaInputStream        = "org/apache/tika/io/TikaInputStream"
	ClassPDFParserConfig        = "org/apache/tika/parser/pdf/PDFParserConfig"
	ClassOCRStrategy            = "org/apache/tika/parser/pdf/PDFParserConfig$OCR_STRATEGY"
	ClassOfficeParserConfig     = "org/apache/tika/parser/microsoft/OfficeParserConfig"
	ClassTesseractOCRConfig     = "org/apache/tika/parser/ocr/TesseractOCRConfig"
	ClassReaderInputStream      = "org/apache/commons/io/input/ReaderInputStream"

	ClassInputStream          = "java/io/InputStream"
	ClassReader               = "java/io/Reader"
	ClassFileInputStream      = "java/io/FileInputStream"
	ClassByteArrayInputStream = "java/io/ByteArrayInputStream"
	ClassURL                  = "java/net/URL"
	ClassCharset              = "java/nio/charset/Charset"
	ClassObject               = "java/lang/Object"
)

const (
	sigVoid          = "()V"
	sigInt           = "(I)V"
	sigBool          = "(Z)V"
	sigString        = "(Ljava/lang/String;)V"
	sigToString      = "()Ljava/lang/String;"
	sigBytes         = "([B)V"
	sigRead          = "([BII)I"
	sigSetString2    = "(Ljava/lang/String;Ljava/lang/String;)V"
	sigStringArray   = "()[Ljava/lang/String;"
	sigGetValues     = "(Ljava/lang/String;)[Ljava/lang/String;"
	sigContextSet    = "(Ljava/lang/Class;Ljava/lang/Object;)V"
	sigOpenStream    = "()Ljava/io/InputStream;"
	sigTikaStreamGet = "(Ljava/io/InputStream;)Lorg/apache/tika/io/TikaInputStream;"
	sigWriteOut      = "(Lorg/xml/sax/ContentHandler;I)V"
	sigParse         = "(Ljava/io/InputStream;Lorg/xml/sax/ContentHandler;Lorg/apache/tika/metadata/Metadata;Lorg/apache/tika/parser/ParseContext;)V"
	sigParsingReader = "(Lorg/apache/tika/parser/Parser;Ljava/io/InputStream;Lorg/apache/tika/metadata/Metadata;Lorg/apache/tika/parser/ParseContext;)V"
	sigReaderStream  = "(Ljava/io/Reader;Ljava/nio/charset/Charset;)V"
	sigCharsetFor    = "(Ljava/lang/String;)Ljava/nio/charset/Charset;"
	sigOCRStrategy   = "Lorg/apache/tika/parser/pdf/PDFParserConfig$OCR_STRATEGY;"
	sigSetOCR        = "(Lorg/apache/tika/parser/pdf/PDFParserConfig$OCR_STRATEGY;)V"
)

// Exceptions the bridge treats specially, by binary name.
const (
	ExcWriteLimitReached = "org.apache.tika.exception.WriteLimitReachedException"
	ExcTika              = "org.apache.tika.exception.TikaException"
	ExcZeroByteFile      = "org.apache.tika.exception.ZeroByteFileException"
	ExcFileNotFound      = "java.io.FileNotFoundException"
	ExcMalformedURL      = "java.net.MalformedURLException"
	ExcUnknownHost       = "java.net.UnknownHostException"
	ExcIO                = "java.io.IOException"
)
