package musicbrainz

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
)

// Provider titles carry decoration MusicBrainz does not index:
// "Song (Remastered 2009)", "Song - Radio Edit", "Song feat. X", often
// stacked ("Song (Deluxe Edition) [2011 Remaster]"). The cleaner peels
// decoration off the end of a title, one suffix at a time, until nothing
// recognizable remains.
//
// A suffix is dropped only when a majority of its tokens are recognized
// edition vocabulary, years, or bare numbers. Voting over tokens keeps
// meaningful parentheticals intact: "(You and I)" has no recognized token
// and survives, "(Taylor's Version)" loses the vote 1:1 against "version"
// and is stripped.

// editionWords is the vocabulary of release-edition decoration. Deliberately
// tight: generic words ("the", "part", "from") cause false positives on
// titles that legitimately end in brackets.
var editionWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"acoustic", "anniversary", "bonus", "clean", "deluxe", "demo",
		"disc", "edit", "edits", "edition", "expanded", "explicit",
		"extended", "instrumental", "karaoke", "live", "mix", "mono",
		"original", "radio", "remaster", "remastered", "remastering",
		"remix", "remixed", "remixes", "rerecorded", "session", "sessions",
		"single", "stereo", "unplugged", "version", "versions", "vol",
		"volume",
	} {
		editionWords[w] = struct{}{}
	}
}

type Cleaner struct {
	trailingGroup *regexp2.Regexp // "(...)"/"[...]" at the end of a title
	dashTail      *regexp2.Regexp // " - Something" suffix
	featTail      *regexp2.Regexp // feat./featuring/ft. and everything after
	artistSep     *regexp2.Regexp // joined-credit separators
}

func NewCleaner() *Cleaner {
	return &Cleaner{
		trailingGroup: regexp2.MustCompile(`\s*[(\[](?<inner>[^()\[\]]*)[)\]]\s*$`, 0),
		dashTail:      regexp2.MustCompile(`\s+[-‐‒–—~]\s*(?<tail>[^-‐‒–—~]+)$`, 0),
		featTail:      regexp2.MustCompile(`(?i)[\s(\[-]\s*(?:featuring|feat\.?|ft\.?)\s+.*$`, 0),
		artistSep:     regexp2.MustCompile(`(?i)(?:,|\s(?:&|\+|vs\.?|with|featuring|feat\.?|ft\.?)\s)`, 0),
	}
}

// isEditionText votes over the tokens of a candidate suffix: recognized
// vocabulary, years, and bare numbers count toward dropping it; anything
// else counts toward keeping it.
func isEditionText(text string) bool {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
	if len(tokens) == 0 {
		return false
	}

	recognized := 0
	for _, tok := range tokens {
		if _, ok := editionWords[tok]; ok {
			recognized++
			continue
		}
		if isNumeric(tok) {
			recognized++
		}
	}
	return recognized > 0 && 2*recognized >= len(tokens)
}

func isNumeric(tok string) bool {
	if tok == "" {
		return false
	}
	for _, r := range tok {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// headBefore slices the text in front of a match. regexp2 indexes are in
// runes, not bytes.
func headBefore(text string, m *regexp2.Match) string {
	return strings.TrimSpace(string([]rune(text)[:m.Index]))
}

// CleanTitle strips featuring credits and recognizable edition suffixes from
// a recording title.
func (c *Cleaner) CleanTitle(text string) string {
	text = strings.TrimSpace(text)

	if m, _ := c.featTail.FindStringMatch(text); m != nil {
		if head := headBefore(text, m); head != "" {
			text = head
		}
	}

	// Decoration stacks; keep peeling until the title is stable.
	for {
		next := c.stripOneSuffix(text)
		if next == text {
			return text
		}
		text = next
	}
}

func (c *Cleaner) stripOneSuffix(text string) string {
	if m, _ := c.trailingGroup.FindStringMatch(text); m != nil {
		if isEditionText(m.GroupByName("inner").String()) {
			if head := headBefore(text, m); head != "" {
				return head
			}
		}
	}

	if m, _ := c.dashTail.FindStringMatch(text); m != nil {
		if isEditionText(m.GroupByName("tail").String()) {
			if head := headBefore(text, m); head != "" {
				return head
			}
		}
	}

	return text
}

// CleanArtist reduces a joined credit ("A, B & C") to its leading artist.
func (c *Cleaner) CleanArtist(text string) string {
	text = strings.TrimSpace(text)

	m, _ := c.artistSep.FindStringMatch(text)
	if m == nil || m.Index == 0 {
		return text
	}

	lead := headBefore(text, m)
	if utf8.RuneCountInString(lead) < 2 {
		return text
	}
	return lead
}
