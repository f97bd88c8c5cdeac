package tikatest

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/FranciscoLopezStriderIntel/extractous/internal/jvm/jvmtest"
)

var (
	pdfVersion  = regexp.MustCompile(`^%PDF-(\d\.\d)`)
	pdfShowText = regexp.MustCompile(`\(((?:[^()\\]|\\.)*)\)\s*Tj`)
	pdfPage     = regexp.MustCompile(`/Type\s*/Page\b`)
)

// parsePDF pulls the strings shown with Tj out of an uncompressed PDF, one
// line per operator. Files without a trailer are rejected as corrupt.
func parsePDF(data []byte) (*document, error) {
	if !bytes.Contains(data, []byte("%%EOF")) {
		return nil, jvmtest.Throw(excTika, "Unable to extract PDF content: missing %%%%EOF marker")
	}
	var lines []string
	for _, m := range pdfShowText.FindAllSubmatch(data, -1) {
		lines = append(lines, unescapePDF(string(m[1])))
	}
	doc := &document{
		contentType: "application/pdf",
		text:        strings.Join(lines, "\n"),
		meta:        [][2]string{{"xmpTPg:NPages", strconv.Itoa(len(pdfPage.FindAll(data, -1)))}},
	}
	if m := pdfVersion.FindSubmatch(data); m != nil {
		doc.meta = append(doc.meta, [2]string{"pdf:PDFVersion", string(m[1])})
	}
	if doc.text != "" {
		doc.text += "\n"
	}
	return doc, nil
}

func unescapePDF(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// PDF builds a minimal, valid single-page PDF 1.4 showing each line with
// Helvetica. The cross-reference table carries real offsets so a full PDF
// parser accepts the file too.
func PDF(lines ...string) []byte {
	var content strings.Builder
	content.WriteString("BT\n/F1 12 Tf\n72 720 Td\n14 TL\n")
	for i, line := range lines {
		if i > 0 {
			content.WriteString("T*\n")
		}
		fmt.Fprintf(&content, "(%s) Tj\n", escapePDF(line))
	}
	content.WriteString("ET")

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
	}

	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objects)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return b.Bytes()
}

func escapePDF(s string) string {
	return strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`).Replace(s)
}
