package extractor

import (
	"archive/zip"
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/unicode"

	"github.com/coursebot/backend/internal/domain/document"
)

func buildZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	// [Content_Types].xml 放在最前，与 Office 生成的文件一致
	if ct, ok := files["[Content_Types].xml"]; ok {
		w, err := zw.Create("[Content_Types].xml")
		require.NoError(t, err)
		_, _ = w.Write([]byte(ct))
	}
	for name, content := range files {
		if name == "[Content_Types].xml" {
			continue
		}
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

func docxBytes(t *testing.T) []byte {
	body := `<?xml version="1.0" encoding="UTF-8"?>
<w:document ` + wordNS + `><w:body>
<w:p><w:r><w:t>Week 1: Pointers</w:t></w:r></w:p>
<w:p><w:r><w:t xml:space="preserve">Read chapter </w:t></w:r><w:r><w:t>5.</w:t></w:r></w:p>
<w:tbl><w:tr><w:tc><w:p><w:r><w:t>Office hours</w:t></w:r><w:r><w:tab/><w:t>Mon</w:t></w:r></w:p></w:tc></w:tr></w:tbl>
</w:body></w:document>`
	return buildZip(t, map[string]string{
		"[Content_Types].xml": `<Types/>`,
		"word/document.xml":   body,
	})
}

func slideXML(text string) string {
	return `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main">
<p:cSld><p:spTree><p:sp><p:txBody><a:p><a:r><a:t>` + text + `</a:t></a:r></a:p></p:txBody></p:sp></p:spTree></p:cSld></p:sld>`
}

// minimalPDF 生成只有一页文本的 PDF，交叉引用表偏移量按实际位置计算
func minimalPDF(text string) []byte {
	content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return buf.Bytes()
}

func TestExtract_BySuffix(t *testing.T) {
	e := New()

	utf16, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte("Résumé CS 232"))
	require.NoError(t, err)

	tests := []struct {
		name     string
		filename string
		data     []byte
		format   Format
		contains []string
	}{
		{"plain text", "syllabus.txt", []byte("Intro to C and Unix"), FormatText, []string{"Intro to C and Unix"}},
		{"utf8 bom", "bom.TXT", append([]byte{0xEF, 0xBB, 0xBF}, "grading"...), FormatText, []string{"grading"}},
		{"utf16 bom", "utf16.txt", utf16, FormatText, []string{"Résumé CS 232"}},
		{"latin1", "legacy.txt", []byte("caf\xe9"), FormatText, []string{"café"}},
		{"docx", "week1.docx", docxBytes(t), FormatDOCX, []string{"Week 1: Pointers", "Read chapter 5.", "Office hours\tMon"}},
		{
			"pptx in slide order", "lecture.pptx",
			buildZip(t, map[string]string{
				"ppt/slides/slide10.xml": slideXML("Ten"),
				"ppt/slides/slide2.xml":  slideXML("Two"),
				"ppt/slides/slide1.xml":  slideXML("One"),
			}),
			FormatPPTX, []string{"One\n\nTwo\n\nTen"},
		},
		{
			"html", "page.HTML",
			[]byte(`<html><head><title>t</title><style>p{}</style></head><body><h1>Labs</h1><script>var x=1;</script><p>Lab <b>one</b> due</p></body></html>`),
			FormatHTML, []string{"Labs\nLab one due"},
		},
		{
			"rtf", "notes.rtf",
			[]byte(`{\rtf1\ansi{\fonttbl{\f0 Times;}}{\*\generator Word;}\f0 Exam\par Caf\'e9 \u8364? night\par}`),
			FormatRTF, []string{"Exam\nCafé € night"},
		},
		{"pdf", "handout.pdf", minimalPDF("Hello PDF"), FormatPDF, []string{"Hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.Extract(tt.data, tt.filename)
			require.NoError(t, err)
			assert.Equal(t, tt.format, res.Format)
			for _, c := range tt.contains {
				assert.Contains(t, res.Text, c)
			}
		})
	}
}

func TestExtract_HTMLSkipsScriptText(t *testing.T) {
	res, err := New().Extract([]byte(`<body><script>alert("x")</script><noscript>enable js</noscript><p>kept</p></body>`), "a.htm")
	require.NoError(t, err)
	assert.Equal(t, "kept", res.Text)
}

func TestExtract_BySignatureWhenSuffixUnknown(t *testing.T) {
	e := New()

	tests := []struct {
		name   string
		data   []byte
		format Format
	}{
		{"html", []byte("<!DOCTYPE html><html><body><p>Hi there</p></body></html>"), FormatHTML},
		{"rtf", []byte(`{\rtf1\ansi Hello rtf\par}`), FormatRTF},
		{"pdf", minimalPDF("Sig"), FormatPDF},
		{"plain", []byte("just some notes\nwith lines"), FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			format, _, ok := e.Detect(tt.data, "upload")
			require.True(t, ok)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestExtract_Unsupported(t *testing.T) {
	_, err := New().Extract([]byte{0x00, 0x9f, 0x92, 0x96, 0xff, 0x00, 0x01, 0x02}, "blob.bin")
	require.Error(t, err)
	assert.ErrorIs(t, err, document.ErrUnsupportedFormat)
	assert.Contains(t, err.Error(), "blob.bin")
}

func TestExtract_EmptyOrBroken(t *testing.T) {
	e := New()

	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"whitespace text", "empty.txt", []byte("  \n\t ")},
		{"corrupt pdf", "broken.pdf", []byte("%PDF-1.4 garbage")},
		{"docx without document", "x.docx", buildZip(t, map[string]string{"other.xml": "<a/>"})},
		{"not a zip", "y.pptx", []byte("plain text pretending")},
		{"rtf without header", "z.rtf", []byte("no header here")},
		{"only script html", "s.html", []byte("<script>x()</script>")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Extract(tt.data, tt.filename)
			require.Error(t, err)
			assert.ErrorIs(t, err, document.ErrEmptyExtraction)
		})
	}
}

func TestExtract_HandlerPanicBecomesFailure(t *testing.T) {
	e := New()
	e.handlers[FormatText] = func([]byte) outcome { panic("boom") }

	_, err := e.Extract([]byte("text"), "a.txt")
	assert.ErrorIs(t, err, document.ErrEmptyExtraction)
}

func TestSupports(t *testing.T) {
	e := New()
	assert.True(t, e.Supports("Lecture.PDF"))
	assert.True(t, e.Supports("notes.htm"))
	assert.False(t, e.Supports("photo.png"))
	assert.False(t, e.Supports("README"))
}
