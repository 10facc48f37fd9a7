package classifier

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ErrNoText reports a document from which no text could be recovered.
var ErrNoText = errors.New("no extractable text")

const maxPlainBytes = 1 << 20

var plainTextExtensions = map[string]bool{
	".txt": true, ".csv": true, ".md": true, ".json": true, ".xml": true, ".html": true, ".htm": true,
}

// ooxmlParts lists the archive members carrying text for each Office format.
var ooxmlParts = map[string][]string{
	".docx": {"word/document.xml"},
	".xlsx": {"xl/sharedStrings.xml"},
	".pptx": {"ppt/slides/slide*.xml"},
}

// Excerpt returns up to limit characters of the document's text. Formats
// without an extractor return ErrNoText; callers then classify by filename.
func Excerpt(filePath string, limit int) (string, error) {
	if limit <= 0 {
		return "", nil
	}
	ext := strings.ToLower(filepath.Ext(filePath))
	var (
		text string
		err  error
	)
	switch {
	case plainTextExtensions[ext]:
		text, err = plainText(filePath)
	case ooxmlParts[ext] != nil:
		text, err = officeText(filePath, ooxmlParts[ext], limit)
	case ext == ".pdf":
		text, err = pdfText(filePath, limit)
	default:
		return "", ErrNoText
	}
	if err != nil {
		return "", err
	}
	text = collapseBlankLines(text)
	if text == "" {
		return "", ErrNoText
	}
	return truncateRunes(text, limit), nil
}

func plainText(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", filePath, err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxPlainBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", filePath, err)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func officeText(filePath string, patterns []string, limit int) (string, error) {
	zr, err := zip.OpenReader(filePath)
	if err != nil {
		return "", fmt.Errorf("open archive %s: %w", filePath, err)
	}
	defer zr.Close()

	var members []*zip.File
	for _, f := range zr.File {
		for _, pattern := range patterns {
			if ok, _ := path.Match(pattern, f.Name); ok {
				members = append(members, f)
				break
			}
		}
	}
	sort.Slice(members, func(i, j int) bool { return naturalLess(members[i].Name, members[j].Name) })

	var b strings.Builder
	for _, member := range members {
		if utf8.RuneCountInString(b.String()) >= limit {
			break
		}
		rc, err := member.Open()
		if err != nil {
			return "", fmt.Errorf("open %s in %s: %w", member.Name, filePath, err)
		}
		err = collectXMLText(&b, rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("parse %s in %s: %w", member.Name, filePath, err)
		}
	}
	return b.String(), nil
}

// collectXMLText appends the character data of every <t> element and breaks
// lines at paragraph and row ends. WordprocessingML, SpreadsheetML and
// DrawingML all use these local names.
func collectXMLText(b *strings.Builder, r io.Reader) error {
	dec := xml.NewDecoder(r)
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch el := tok.(type) {
		case xml.StartElement:
			if el.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "t":
				inText = false
			case "p", "si", "tr":
				b.WriteByte('\n')
			case "tc":
				b.WriteByte('\t')
			}
		case xml.CharData:
			if inText {
				b.Write(el)
			}
		}
	}
}

// pdfText returns the plain text of the document's pages. Scanned PDFs
// without a text layer yield nothing and fall through to ErrNoText.
func pdfText(filePath string, limit int) (text string, err error) {
	// The reader reports malformed objects by panicking.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("%w: parse pdf %s: %v", ErrNoText, filePath, r)
		}
	}()
	f, doc, err := pdf.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("%w: open pdf %s: %v", ErrNoText, filePath, err)
	}
	defer f.Close()

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("%w: read pdf %s: %v", ErrNoText, filePath, err)
	}
	data, err := io.ReadAll(io.LimitReader(plain, int64(limit)*utf8.UTFMax*4))
	if err != nil {
		return "", fmt.Errorf("read pdf %s: %w", filePath, err)
	}
	var b strings.Builder
	for _, line := range strings.Split(strings.ToValidUTF8(string(data), ""), "\n") {
		if line = strings.TrimSpace(line); mostlyReadable(line) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String(), nil
}

func mostlyReadable(text string) bool {
	if text == "" {
		return false
	}
	total, good := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || unicode.IsPunct(r) {
			good++
		}
	}
	return good*4 >= total*3
}

func collapseBlankLines(text string) string {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}

func truncateRunes(text string, limit int) string {
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	runes := []rune(text)
	return string(runes[:limit])
}

// naturalLess orders slide2.xml before slide10.xml.
func naturalLess(a, b string) bool {
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
