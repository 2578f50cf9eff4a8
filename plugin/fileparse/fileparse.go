// Package fileparse validates uploaded files and turns them into textual
// excerpts for persistence. Only the excerpt is ever stored; raw file bytes
// are discarded after processing.
package fileparse

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/pkg/errors"

	"github.com/J12003LPZ/Chatbot/internal/profile"
)

// excerptMaxRunes caps the extracted text stored per upload.
const excerptMaxRunes = 2000

// FileKind classifies an upload by its declared extension.
type FileKind string

const (
	FileKindPDF   FileKind = "pdf"
	FileKindImage FileKind = "image"
	FileKindText  FileKind = "text"
)

var (
	// ErrUnsupportedType is reported as a client error by the upload
	// handler, before anything reaches the persistence layer.
	ErrUnsupportedType = errors.New("file type not allowed")
	// ErrTooLarge is reported when the upload exceeds the size limit.
	ErrTooLarge = errors.New("file too large")
)

var kindByExtension = map[string]FileKind{
	".pdf":  FileKindPDF,
	".png":  FileKindImage,
	".jpg":  FileKindImage,
	".jpeg": FileKindImage,
	".gif":  FileKindImage,
	".txt":  FileKindText,
}

// Result is what upload processing hands back to the caller: the excerpt to
// persist and, for images, the processed payload for immediate model use.
type Result struct {
	Kind      FileKind
	Excerpt   string
	ImageData string
	ImageSize int
}

// Parser validates and extracts content from uploads.
type Parser struct {
	maxBytes    int64
	tika        *TikaClient
	tikaEnabled bool
}

// NewParser builds a parser from the profile.
func NewParser(p *profile.Profile) *Parser {
	parser := &Parser{
		maxBytes:    p.MaxUploadBytes,
		tikaEnabled: p.TextExtractEnabled,
	}
	if p.TextExtractEnabled {
		parser.tika = NewTikaClient(&TikaConfig{
			ServerURL: p.TikaServerURL,
			Timeout:   DefaultTikaConfig().Timeout,
		})
	}
	return parser
}

// Validate checks the declared type and size before any processing. It
// returns the file kind so callers can route the result.
func (p *Parser) Validate(filename string, size int64) (FileKind, error) {
	kind, ok := kindByExtension[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedType, "%s", filename)
	}
	if p.maxBytes > 0 && size > p.maxBytes {
		return "", errors.Wrapf(ErrTooLarge, "%d bytes (limit %d)", size, p.maxBytes)
	}
	return kind, nil
}

// Parse extracts the stored representation for an upload that already
// passed Validate.
func (p *Parser) Parse(ctx context.Context, filename string, data []byte) (*Result, error) {
	kind, err := p.Validate(filename, int64(len(data)))
	if err != nil {
		return nil, err
	}

	switch kind {
	case FileKindPDF:
		if !p.tikaEnabled {
			return nil, errors.Wrap(ErrUnsupportedType, "pdf extraction requires the text extraction service")
		}
		text, err := p.tika.ExtractText(ctx, data, "application/pdf")
		if err != nil {
			return nil, errors.Wrap(err, "failed to extract pdf text")
		}
		return &Result{
			Kind:    kind,
			Excerpt: fmt.Sprintf("User uploaded a PDF file '%s'. Content:\n\n%s", filename, truncateExcerpt(text)),
		}, nil

	case FileKindText:
		text := string(data)
		if p.tikaEnabled {
			// Tika normalizes encodings when available; plain bytes are
			// good enough otherwise.
			if extracted, err := p.tika.ExtractText(ctx, data, "text/plain"); err == nil {
				text = extracted
			}
		}
		if !utf8.ValidString(text) {
			return nil, errors.Wrap(ErrUnsupportedType, "text file is not valid UTF-8")
		}
		return &Result{
			Kind:    kind,
			Excerpt: fmt.Sprintf("User uploaded a text file '%s'. Content:\n\n%s", filename, truncateExcerpt(text)),
		}, nil

	case FileKindImage:
		imageData, size, err := processImage(data)
		if err != nil {
			return nil, err
		}
		return &Result{
			Kind:      kind,
			Excerpt:   fmt.Sprintf("User uploaded an image file '%s' (processed to %dx%d). The image has been processed and is ready for analysis.", filename, size, size),
			ImageData: imageData,
			ImageSize: size,
		}, nil
	}

	return nil, errors.Wrapf(ErrUnsupportedType, "%s", filename)
}

// truncateExcerpt caps extracted text at the stored excerpt size.
func truncateExcerpt(text string) string {
	runes := []rune(text)
	if len(runes) <= excerptMaxRunes {
		return text
	}
	return string(runes[:excerptMaxRunes]) + "..."
}
