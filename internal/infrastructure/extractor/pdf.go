package extractor

import (
	"bytes"
	"io"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte) outcome {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return failed("open pdf: %v", err)
	}

	plain, err := r.GetPlainText()
	if err != nil {
		return failed("read pdf text: %v", err)
	}

	text, err := io.ReadAll(plain)
	if err != nil {
		return failed("read pdf text: %v", err)
	}
	return outcome{text: string(text)}
}
