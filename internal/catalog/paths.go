package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"
)

// VideoExt is the extension of every clip file.
const VideoExt = ".mp4"

// VideoPath builds the destination of a clip:
// <out>/<course title>/<module index>. <module title>/<clip index>. <clip title>.mp4
func VideoPath(outputDir, courseTitle string, moduleIndex int, moduleTitle string, clip Clip) string {
	return filepath.Join(
		CourseDir(outputDir, courseTitle),
		fmt.Sprintf("%d. %s", moduleIndex, SanitizeName(moduleTitle)),
		fmt.Sprintf("%d. %s%s", clip.Index, SanitizeName(clip.Title), VideoExt),
	)
}

// CourseDir is the directory holding every file of a course.
func CourseDir(outputDir, courseTitle string) string {
	return filepath.Join(outputDir, SanitizeName(courseTitle))
}

// SanitizeName makes a title safe to use as a single path element on common filesystems.
func SanitizeName(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r):
			return -1
		case unicode.IsControl(r):
			return -1
		}

		return r
	}, name)

	cleaned = strings.Join(strings.Fields(cleaned), " ")
	cleaned = strings.TrimRight(cleaned, ". ")

	if cleaned == "" {
		return "untitled"
	}

	return cleaned
}
