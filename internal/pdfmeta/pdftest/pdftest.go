// Package pdftest builds small PDF files for tests
package pdftest

import (
	"bytes"
	"crypto/md5" //nolint:gosec // PDF standard security handler
	"crypto/rc4" //nolint:gosec // PDF standard security handler
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

var passwordPad = []byte{
	0x28, 0xbf, 0x4e, 0x5e, 0x4e, 0x75, 0x8a, 0x41,
	0x64, 0x00, 0x4e, 0x56, 0xff, 0xfa, 0x01, 0x08,
	0x2e, 0x2e, 0x00, 0xb6, 0xd0, 0x68, 0x3e, 0x80,
	0x2f, 0x0c, 0xa9, 0xfe, 0x64, 0x53, 0x69, 0x7a,
}

var (
	fileID     = bytes.Repeat([]byte{0x5a}, 16)
	ownerEntry = bytes.Repeat([]byte{0x11}, 32)
)

const permissions = int32(-4)

// Minimal returns a PDF with the given number of empty pages
func Minimal(pages int) []byte {
	return build(pages, "")
}

// Encrypted returns a PDF that opens only with userPassword
func Encrypted(pages int, userPassword string) []byte {
	return build(pages, userPassword)
}

// Write stores a Minimal PDF named name in dir and returns its path
func Write(t testing.TB, dir, name string, pages int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, Minimal(pages), 0o644))
	return path
}

func build(pages int, userPassword string) []byte {
	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
	}
	kids := make([]string, pages)
	for i := range kids {
		kids[i] = fmt.Sprintf("%d 0 R", i+3)
	}
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), pages))
	for i := 0; i < pages; i++ {
		objects = append(objects, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>")
	}

	encrypted := userPassword != ""
	if encrypted {
		objects = append(objects, fmt.Sprintf(
			"<< /Filter /Standard /V 1 /R 2 /Length 40 /P %d /O <%s> /U <%s> >>",
			permissions, hex.EncodeToString(ownerEntry), hex.EncodeToString(userEntry(userPassword)),
		))
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

	trailer := fmt.Sprintf("/Size %d /Root 1 0 R", len(objects)+1)
	if encrypted {
		id := hex.EncodeToString(fileID)
		trailer += fmt.Sprintf(" /Encrypt %d 0 R /ID [<%s> <%s>]", len(objects), id, id)
	}
	fmt.Fprintf(&buf, "trailer\n<< %s >>\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

// userEntry computes the /U value of a revision 2 standard security handler
func userEntry(password string) []byte {
	pw := []byte(password)
	h := md5.New() //nolint:gosec
	if len(pw) >= 32 {
		h.Write(pw[:32])
	} else {
		h.Write(pw)
		h.Write(passwordPad[:32-len(pw)])
	}
	h.Write(ownerEntry)
	perm := permissions
	p := uint32(perm)
	h.Write([]byte{byte(p), byte(p >> 8), byte(p >> 16), byte(p >> 24)})
	h.Write(fileID)
	key := h.Sum(nil)[:5]

	c, err := rc4.NewCipher(key) //nolint:gosec
	if err != nil {
		panic(err)
	}
	u := make([]byte, 32)
	c.XORKeyStream(u, passwordPad)
	return u
}
