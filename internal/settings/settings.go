// Package settings validates the conversion options callers attach to a job
package settings

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Prefix is shared by every converter option key
const Prefix = "org.jpedal.pdf2html."

// Keys with special meaning outside the converter
const (
	KeyPassword = "password"
	KeyViewMode = Prefix + "viewMode"
	KeyTextMode = Prefix + "textMode"
)

// ViewModeContent produces HTML without the preview viewer
const ViewModeContent = "content"

var (
	// ErrUnknownKey is returned for keys outside the vocabulary
	ErrUnknownKey = errors.New("unknown setting")
	// ErrInvalidValue is returned for values a known key does not accept
	ErrInvalidValue = errors.New("invalid setting value")
	// ErrOddPairs is returned by ParsePairs when a key has no value
	ErrOddPairs = errors.New("settings must be key/value pairs")
)

const pageRangePattern = `(\s*((\d+\s*-\s*\d+)|(\d+\s*:\s*\d+)|(\d+))\s*(,|$)\s*)+`

type rule func(value string) error

var vocabulary = map[string]rule{
	KeyTextMode: oneOf(
		"svg_realtext",
		"svg_shapetext_selectable",
		"svg_shapetext_nonselectable",
		"image_realtext",
		"image_shapetext_selectable",
		"image_shapetext_nonselectable",
	),
	Prefix + "compressSVG":                        boolean,
	Prefix + "embedImagesAsBase64Stream":          boolean,
	Prefix + "convertSpacesToNbsp":                boolean,
	Prefix + "convertPDFExternalFileToOutputType": boolean,
	Prefix + "keepGlyfsSeparate":                  boolean,
	Prefix + "separateTextToWords":                boolean,
	Prefix + "compressImages":                     boolean,
	Prefix + "useLegacyImageFileType":             boolean,
	Prefix + "imageScale":                         floatRange(1, 10),
	Prefix + "includedFonts":                      oneOf("woff", "otf", "woff_base64", "otf_base64"),
	Prefix + "disableComments":                    boolean,
	Prefix + "realPageRange":                      pattern(pageRangePattern),
	Prefix + "logicalPageRange":                   pattern(pageRangePattern),
	Prefix + "scaling":                            pattern(`(\d+\.\d+)|(\d+x\d+)|(fitWidth\d+)|(fitHeight\d+)|(\d+)`),
	KeyViewMode:                                   oneOf(ViewModeContent),
	Prefix + "completeDocument":                   boolean,
	Prefix + "viewerUI":                           oneOf("complete", "clean", "simple", "slideshow", "custom"),
	Prefix + "containerId":                        anything,
	Prefix + "generateSearchFile":                 boolean,
	Prefix + "outputThumbnails":                   boolean,
	KeyPassword:                                   anything,
}

// Validate checks every key and value and reports all problems together
func Validate(s map[string]string) error {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, k := range keys {
		r, ok := vocabulary[k]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownKey, k))
			continue
		}
		if err := r(s[k]); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s=%q %v", ErrInvalidValue, k, s[k], err))
		}
	}
	return errors.Join(errs...)
}

// ParsePairs turns a flat key, value, key, value list into a map
func ParsePairs(pairs []string) (map[string]string, error) {
	if len(pairs)%2 != 0 {
		return nil, fmt.Errorf("%w: got %d items", ErrOddPairs, len(pairs))
	}
	out := make(map[string]string, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		out[strings.TrimSpace(pairs[i])] = pairs[i+1]
	}
	return out, nil
}

// Previewless reports whether the output should skip the preview viewer
func Previewless(s map[string]string) bool {
	return s[KeyViewMode] == ViewModeContent
}

// Password returns the document password, if any
func Password(s map[string]string) string {
	return s[KeyPassword]
}

// Keys returns the sorted vocabulary
func Keys() []string {
	keys := make([]string, 0, len(vocabulary))
	for k := range vocabulary {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func boolean(v string) error {
	switch strings.ToLower(v) {
	case "true", "false":
		return nil
	}
	return errors.New("expected true or false")
}

func anything(string) error { return nil }

func oneOf(options ...string) rule {
	return func(v string) error {
		for _, o := range options {
			if v == o {
				return nil
			}
		}
		return fmt.Errorf("expected one of %s", strings.Join(options, ", "))
	}
}

func floatRange(lo, hi float64) rule {
	return func(v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return errors.New("expected a number")
		}
		if math.IsNaN(f) || f < lo || f > hi {
			return fmt.Errorf("expected a number between %g and %g", lo, hi)
		}
		return nil
	}
}

func pattern(expr string) rule {
	re := regexp.MustCompile(`^(?:` + expr + `)$`)
	return func(v string) error {
		if !re.MatchString(v) {
			return errors.New("does not match the expected format")
		}
		return nil
	}
}
