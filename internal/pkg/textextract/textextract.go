package textextract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	MIMEPDF  = "application/pdf"
	MIMEDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MIMEText = "text/plain"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrEmptyDocument     = errors.New("document contains no extractable text")
)

var extensionMIME = map[string]string{
	".pdf":  MIMEPDF,
	".docx": MIMEDOCX,
	".txt":  MIMEText,
}

// MIMEFromExtension maps an upload file extension (with the leading dot) to
// one of the supported MIME types.
func MIMEFromExtension(ext string) (string, bool) {
	m, ok := extensionMIME[strings.ToLower(ext)]
	return m, ok
}

// Supported reports whether mimeType can be extracted. Parameters such as
// charset are ignored.
func Supported(mimeType string) bool {
	switch baseMIME(mimeType) {
	case MIMEPDF, MIMEDOCX, MIMEText:
		return true
	}
	return false
}

// Extract converts a document stream into trimmed plain text.
func Extract(r io.Reader, mimeType string) (string, error) {
	kind := baseMIME(mimeType)
	if !Supported(kind) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read document failed: %w", err)
	}

	var text string
	switch kind {
	case MIMEPDF:
		text, err = extractPDF(data)
	case MIMEDOCX:
		text, err = extractDOCX(data)
	default:
		text = string(data)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

// ExtractFile reads the document at path and extracts it.
func ExtractFile(path, mimeType string) (string, error) {
	if !Supported(mimeType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open document failed: %w", err)
	}
	defer f.Close()
	return Extract(f, mimeType)
}

func baseMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		return parsed
	}
	return mt
}

func extractPDF(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", nil
	}
	// the pdf reader panics on some malformed streams
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("read pdf text failed: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf failed: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	out, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("read pdf text failed: %w", err)
	}
	return string(out), nil
}

const docxBody = "word/document.xml"

func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx failed: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != docxBody {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open docx body failed: %w", err)
		}
		defer rc.Close()
		return wordprocessingText(rc)
	}
	return "", fmt.Errorf("open docx failed: missing %s", docxBody)
}

// wordprocessingText walks a WordprocessingML body collecting <w:t> runs.
// Paragraph ends and <w:br/> become newlines, <w:tab/> a tab.
func wordprocessingText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var out strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse docx body failed: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				out.WriteByte('\t')
			case "br", "cr":
				out.WriteByte('\n')
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				out.WriteByte('\n')
			}
		case xml.CharData:
			if inText {
				out.Write(t)
			}
		}
	}
	return out.String(), nil
}
