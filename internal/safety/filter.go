package safety

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/MimeLyc/reelforge/internal/story"
	"golang.org/x/text/unicode/norm"
)

// Hard-ban labels.
const (
	LabelSelfHarm          = "self-harm"
	LabelSexualAssault     = "sexual-assault"
	LabelMinors            = "minors"
	LabelRealWorldViolence = "real-world-violence"
)

type banRule struct {
	label    string
	patterns []*regexp.Regexp
}

type softRule struct {
	pattern     *regexp.Regexp
	replacement string
}

func mustRules(exprs ...string) []*regexp.Regexp {
	ret := make([]*regexp.Regexp, 0, len(exprs))
	for _, expr := range exprs {
		ret = append(ret, regexp.MustCompile(`(?i)`+expr))
	}
	return ret
}

var defaultBans = []banRule{
	{label: LabelSelfHarm, patterns: mustRules(
		`\bsuicid(e|es|al)\b`,
		`\bself[- ]?harm(ing)?\b`,
		`\bkill(s|ed|ing)? (myself|yourself|himself|herself|themselves)\b`,
		`\bslit(s|ting)? (my|his|her|their|your) wrists?\b`,
		`\bhang(s|ed|ing)? (myself|yourself|himself|herself|themselves)\b`,
		`\bend(ed|ing)? (my|his|her|their) (own )?life\b`,
	)},
	{label: LabelSexualAssault, patterns: mustRules(
		`\brap(e|ed|es|ing|ist|ists)\b`,
		`\bsexual(ly)? assault(ed|s)?\b`,
		`\bmolest(ed|er|ing|ation)?\b`,
	)},
	{label: LabelMinors, patterns: mustRules(
		`\bunderage\b`,
		`\bpedophil(e|es|ia)\b`,
		`\bchild (abuse|pornography|exploitation)\b`,
		`\b(child|children|kid|kids|minor|minors|toddler|toddlers)\b[^.!?]{0,40}\b(naked|nude|sexual|abused)\b`,
	)},
	{label: LabelRealWorldViolence, patterns: mustRules(
		`\b(school|mass|church) shootings?\b`,
		`\bterror(ist)? attacks?\b`,
		`\bgenocide\b`,
		`\b(columbine|sandy hook|uvalde|parkland|bataclan)\b`,
		`\b9/11\b`,
	)},
}

var defaultSoft = []softRule{
	{pattern: regexp.MustCompile(`(?i)\bgore\b`), replacement: "shadows"},
	{pattern: regexp.MustCompile(`(?i)\bgory\b`), replacement: "grim"},
	{pattern: regexp.MustCompile(`(?i)\bbloody\b`), replacement: "stained"},
	{pattern: regexp.MustCompile(`(?i)\bblood\b`), replacement: "dark stains"},
	{pattern: regexp.MustCompile(`(?i)\bdismember(ed|ing)?\b`), replacement: "torn apart"},
	{pattern: regexp.MustCompile(`(?i)\bdecapitat(ed|ion)\b`), replacement: "gone"},
	{pattern: regexp.MustCompile(`(?i)\bmutilat(ed|ion)\b`), replacement: "twisted"},
	{pattern: regexp.MustCompile(`(?i)\bcorpses\b`), replacement: "still figures"},
	{pattern: regexp.MustCompile(`(?i)\bcorpse\b`), replacement: "still figure"},
	{pattern: regexp.MustCompile(`(?i)\bguts\b`), replacement: "darkness"},
	{pattern: regexp.MustCompile(`(?i)\bsevered\b`), replacement: "broken"},
	{pattern: regexp.MustCompile(`(?i)\bstabbed\b`), replacement: "struck"},
	{pattern: regexp.MustCompile(`(?i)\bslaughter(ed)?\b`), replacement: "taken"},
}

// Result is the outcome of checking a story.
type Result struct {
	Story *story.Story
	Flags []string
	Safe  bool
}

// Filter applies hard-ban and soft-replacement rules. It holds no mutable
// state and is safe for concurrent use.
type Filter struct {
	bans []banRule
	soft []softRule
}

func NewFilter() *Filter {
	return &Filter{bans: defaultBans, soft: defaultSoft}
}

// CheckText sanitizes text and returns the distinct hard-ban labels it
// triggered. Replacements are applied whether or not a ban matched.
func (f *Filter) CheckText(text string) (string, []string) {
	sanitized := f.sanitize(text)
	flags := make(map[string]struct{})
	f.collect(sanitized, flags)
	return sanitized, sortedKeys(flags)
}

// Check returns a sanitized copy of s. The input story is not modified.
func (f *Filter) Check(s *story.Story) Result {
	out := s.Clone()
	flags := make(map[string]struct{})

	out.Title = f.sanitize(out.Title)
	out.Description = f.sanitize(out.Description)
	out.Hook = f.sanitize(out.Hook)
	for i := range out.Scenes {
		scene := &out.Scenes[i]
		scene.Narration = f.sanitize(scene.Narration)
		scene.Description = f.sanitize(scene.Description)
		scene.ImagePrompt = f.sanitize(scene.ImagePrompt)
		f.collect(scene.Narration, flags)
	}
	if len(out.Scenes) > 0 {
		story.Finalize(out, 0)
		out.TotalDuration = s.TotalDuration
	}

	labels := sortedKeys(flags)
	return Result{Story: out, Flags: labels, Safe: len(labels) == 0}
}

func (f *Filter) sanitize(text string) string {
	if text == "" {
		return text
	}
	text = norm.NFC.String(text)
	for _, rule := range f.soft {
		text = rule.pattern.ReplaceAllStringFunc(text, func(match string) string {
			return matchCase(match, rule.replacement)
		})
	}
	return text
}

func (f *Filter) collect(text string, flags map[string]struct{}) {
	text = norm.NFC.String(text)
	for _, rule := range f.bans {
		for _, p := range rule.patterns {
			if p.MatchString(text) {
				flags[rule.label] = struct{}{}
				break
			}
		}
	}
}

// matchCase capitalizes the replacement when the matched word was.
func matchCase(match, replacement string) string {
	first, _ := utf8.DecodeRuneInString(match)
	if !unicode.IsUpper(first) {
		return replacement
	}
	if strings.ToUpper(match) == match && utf8.RuneCountInString(match) > 1 {
		return strings.ToUpper(replacement)
	}
	r, size := utf8.DecodeRuneInString(replacement)
	return string(unicode.ToUpper(r)) + replacement[size:]
}

func sortedKeys(m map[string]struct{}) []string {
	ret := make([]string, 0, len(m))
	for k := range m {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
