// Package pdfmeta opens PDFs to check they are readable and to count their pages
package pdfmeta

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrInvalidDocument is returned for files that cannot be parsed as PDF
	ErrInvalidDocument = errors.New("invalid PDF document")
	// ErrInvalidPassword is returned for encrypted PDFs opened without the right password
	ErrInvalidPassword = errors.New("invalid PDF password")
)

// Info is what Inspect learns about a document
type Info struct {
	PageCount         int
	PasswordProtected bool
}

// Inspect opens the PDF at path, trying password if the file is encrypted
func Inspect(path, password string) (info Info, err error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat %s: %w", path, err)
	}

	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			info = Info{}
			err = fmt.Errorf("%w: %v", ErrInvalidDocument, r)
		}
	}()

	asked := false
	r, err := pdf.NewReaderEncrypted(f, st.Size(), func() string {
		if asked {
			return ""
		}
		asked = true
		return password
	})
	if err != nil {
		if errors.Is(err, pdf.ErrInvalidPassword) {
			return Info{}, ErrInvalidPassword
		}
		return Info{}, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	pages := r.NumPage()
	if pages <= 0 {
		return Info{}, fmt.Errorf("%w: no pages", ErrInvalidDocument)
	}
	return Info{PageCount: pages, PasswordProtected: asked}, nil
}
