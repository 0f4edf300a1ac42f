package patcher

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholders understood by descriptor patching. Plugin descriptors must
// survive byte-level round-trips apart from the patched fields, so patching is
// textual substitution rather than an XML rewrite.
const (
	BuildNumberPlaceholder = "__BUILD_NUMBER__"
	DatePlaceholder        = "__DATE__"
)

var (
	versionTagRe     = regexp.MustCompile(`<version>[^<]*</version>`)
	ideaVersionTagRe = regexp.MustCompile(`<idea-version([^>]*)/>`)
	sinceBuildAttrRe = regexp.MustCompile(`since-build="[^"]*"`)
	untilBuildAttrRe = regexp.MustCompile(`until-build="[^"]*"`)
	versionTagFindRe = regexp.MustCompile(`<version>([^<]*)</version>`)
)

// DescriptorPatch carries the release metadata stamped into a plugin
// descriptor before packing.
type DescriptorPatch struct {
	Version     string
	ReleaseDate string // yyyyMMdd
	SinceBuild  string
	UntilBuild  string
}

// PatchPluginDescriptor substitutes placeholders and release metadata in
// plugin.xml content and returns the patched bytes.
func PatchPluginDescriptor(content []byte, p DescriptorPatch) []byte {
	text := string(content)
	text = strings.ReplaceAll(text, BuildNumberPlaceholder, p.Version)
	text = strings.ReplaceAll(text, DatePlaceholder, p.ReleaseDate)

	if p.Version != "" {
		replacement := fmt.Sprintf("<version>%s</version>", p.Version)
		if versionTagRe.MatchString(text) {
			text = versionTagRe.ReplaceAllString(text, replacement)
		} else if idx := strings.Index(text, "</id>"); idx >= 0 {
			text = text[:idx+len("</id>")] + "\n  " + replacement + text[idx+len("</id>"):]
		}
	}

	if p.SinceBuild != "" || p.UntilBuild != "" {
		text = ideaVersionTagRe.ReplaceAllStringFunc(text, func(tag string) string {
			if p.SinceBuild != "" {
				if sinceBuildAttrRe.MatchString(tag) {
					tag = sinceBuildAttrRe.ReplaceAllString(tag, fmt.Sprintf("since-build=%q", p.SinceBuild))
				} else {
					tag = strings.Replace(tag, "<idea-version", fmt.Sprintf("<idea-version since-build=%q", p.SinceBuild), 1)
				}
			}
			if p.UntilBuild != "" {
				if untilBuildAttrRe.MatchString(tag) {
					tag = untilBuildAttrRe.ReplaceAllString(tag, fmt.Sprintf("until-build=%q", p.UntilBuild))
				} else {
					tag = strings.Replace(tag, "<idea-version", fmt.Sprintf("<idea-version until-build=%q", p.UntilBuild), 1)
				}
			}
			return tag
		})
	}

	return []byte(text)
}

// DescriptorVersion extracts the <version> tag value from descriptor content,
// or "" when the descriptor does not declare one.
func DescriptorVersion(content []byte) string {
	m := versionTagFindRe.FindSubmatch(content)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(string(m[1]))
}
