package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		settings map[string]string
		wantErr  error
	}{
		{name: "empty", settings: nil},
		{name: "text mode", settings: map[string]string{KeyTextMode: "svg_realtext"}},
		{name: "bad text mode", settings: map[string]string{KeyTextMode: "svg"}, wantErr: ErrInvalidValue},
		{name: "boolean any case", settings: map[string]string{Prefix + "compressSVG": "TRUE"}},
		{name: "boolean garbage", settings: map[string]string{Prefix + "compressSVG": "yes"}, wantErr: ErrInvalidValue},
		{name: "image scale bounds", settings: map[string]string{Prefix + "imageScale": "10"}},
		{name: "image scale fraction", settings: map[string]string{Prefix + "imageScale": "1.5"}},
		{name: "image scale too small", settings: map[string]string{Prefix + "imageScale": "0.5"}, wantErr: ErrInvalidValue},
		{name: "image scale nan", settings: map[string]string{Prefix + "imageScale": "NaN"}, wantErr: ErrInvalidValue},
		{name: "page range list", settings: map[string]string{Prefix + "realPageRange": "1-3, 5, 7:9"}},
		{name: "page range garbage", settings: map[string]string{Prefix + "realPageRange": "1-3 5"}, wantErr: ErrInvalidValue},
		{name: "logical page range", settings: map[string]string{Prefix + "logicalPageRange": "2"}},
		{name: "scaling fit width", settings: map[string]string{Prefix + "scaling": "fitWidth800"}},
		{name: "scaling dimensions", settings: map[string]string{Prefix + "scaling": "800x600"}},
		{name: "scaling partial match", settings: map[string]string{Prefix + "scaling": "1.5x"}, wantErr: ErrInvalidValue},
		{name: "view mode", settings: map[string]string{KeyViewMode: "content"}},
		{name: "bad view mode", settings: map[string]string{KeyViewMode: "full"}, wantErr: ErrInvalidValue},
		{name: "viewer ui", settings: map[string]string{Prefix + "viewerUI": "slideshow"}},
		{name: "fonts", settings: map[string]string{Prefix + "includedFonts": "woff_base64"}},
		{name: "container id", settings: map[string]string{Prefix + "containerId": "anything at all"}},
		{name: "password", settings: map[string]string{KeyPassword: "s3cret"}},
		{name: "unknown key", settings: map[string]string{"org.jpedal.pdf2html.unknown": "1"}, wantErr: ErrUnknownKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.settings)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	err := Validate(map[string]string{
		"bogus":                       "1",
		Prefix + "compressSVG":        "maybe",
		Prefix + "imageScale":         "11",
		Prefix + "generateSearchFile": "true",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownKey)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Contains(t, err.Error(), "bogus")
	assert.Contains(t, err.Error(), "compressSVG")
	assert.Contains(t, err.Error(), "imageScale")
	assert.NotContains(t, err.Error(), "generateSearchFile")
}

func TestParsePairs(t *testing.T) {
	m, err := ParsePairs([]string{KeyTextMode, "svg_realtext", " " + KeyPassword, "pw"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{KeyTextMode: "svg_realtext", KeyPassword: "pw"}, m)

	_, err = ParsePairs([]string{KeyTextMode})
	assert.ErrorIs(t, err, ErrOddPairs)

	m, err = ParsePairs(nil)
	require.NoError(t, err)
	assert.Empty(t, m)
}

func TestHelpers(t *testing.T) {
	assert.True(t, Previewless(map[string]string{KeyViewMode: ViewModeContent}))
	assert.False(t, Previewless(nil))
	assert.Equal(t, "pw", Password(map[string]string{KeyPassword: "pw"}))
	assert.Contains(t, Keys(), KeyPassword)
	assert.Len(t, Keys(), len(vocabulary))
}
