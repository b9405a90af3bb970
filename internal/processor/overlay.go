package processor

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZacxDev/clip-stitcher/internal/config"
	"github.com/ZacxDev/clip-stitcher/internal/ffmpeg"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/exp/slices"
)

var fontExtensions = map[string]bool{
	".ttf": true,
	".otf": true,
	".ttc": true,
}

// FindFont returns the first font file under dir in lexical order, or ""
// when the directory is missing or holds no fonts. Unreadable subtrees are
// skipped; the first such error is returned alongside whatever was found.
func FindFont(dir string) (string, error) {
	if dir == "" {
		return "", nil
	}
	if _, err := os.Stat(dir); err != nil {
		return "", nil
	}

	var (
		fonts   []string
		skipped error
	)
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if skipped == nil {
				skipped = err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && fontExtensions[strings.ToLower(filepath.Ext(path))] {
			fonts = append(fonts, path)
		}
		return nil
	})
	if err == nil {
		err = skipped
	}
	if err != nil {
		err = errors.Wrapf(err, "search fonts in %s", dir)
	}
	if len(fonts) == 0 {
		return "", err
	}
	slices.Sort(fonts)
	return fonts[0], err
}

// overlayStyle picks the font every clip number is drawn with. Without a
// font file the number is still drawn, using the system's default family.
func overlayStyle(fontsDir string, logger zerolog.Logger) ffmpeg.Overlay {
	font, err := FindFont(fontsDir)
	if err != nil {
		logger.Debug().Err(err).Msg("font search incomplete")
	}
	if font != "" {
		logger.Debug().Str("font", font).Msg("using overlay font")
		return ffmpeg.Overlay{FontFile: font}
	}
	logger.Warn().
		Str("fonts_dir", fontsDir).
		Str("family", config.TextFallback).
		Msg("no font file found, falling back to system font")
	return ffmpeg.Overlay{FontFamily: config.TextFallback}
}
