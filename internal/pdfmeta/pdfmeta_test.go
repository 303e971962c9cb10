package pdfmeta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/docconv/internal/pdfmeta/pdftest"
)

func write(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestInspect(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		password string
		pages    int
		wantErr  error
	}{
		{name: "single page", data: pdftest.Minimal(1), pages: 1},
		{name: "many pages", data: pdftest.Minimal(7), pages: 7},
		{name: "password ignored for plain file", data: pdftest.Minimal(2), password: "unused", pages: 2},
		{name: "encrypted with password", data: pdftest.Encrypted(3, "secret"), password: "secret", pages: 3},
		{name: "encrypted without password", data: pdftest.Encrypted(3, "secret"), wantErr: ErrInvalidPassword},
		{name: "encrypted wrong password", data: pdftest.Encrypted(3, "secret"), password: "guess", wantErr: ErrInvalidPassword},
		{name: "not a pdf", data: []byte("this is a plain text file, not a document"), wantErr: ErrInvalidDocument},
		{name: "truncated", data: pdftest.Minimal(2)[:40], wantErr: ErrInvalidDocument},
		{name: "no pages", data: pdftest.Minimal(0), wantErr: ErrInvalidDocument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := Inspect(write(t, tt.data), tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.pages, info.PageCount)
		})
	}
}

func TestInspectMarksPasswordProtected(t *testing.T) {
	info, err := Inspect(write(t, pdftest.Encrypted(1, "pw")), "pw")
	require.NoError(t, err)
	assert.True(t, info.PasswordProtected)

	info, err = Inspect(write(t, pdftest.Minimal(1)), "")
	require.NoError(t, err)
	assert.False(t, info.PasswordProtected)
}

func TestInspectMissingFile(t *testing.T) {
	_, err := Inspect(filepath.Join(t.TempDir(), "missing.pdf"), "")
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
