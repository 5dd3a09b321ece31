// Package fuzzy matches catalog track metadata against video search results.
package fuzzy

import (
	"regexp"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	featRegex    = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(?:feat\.?|ft\.?|featuring)\s+[^\)\]]*[\)\]]?\s*`)
	versionRegex = regexp.MustCompile(`(?i)\s*[\(\[]?\s*\b(remaster|remastered|deluxe|extended|radio edit|clean|explicit).*[\)\]]?\s*`)
	// videoNoiseRegex matches the decorations uploaders put on music videos.
	videoNoiseRegex = regexp.MustCompile(`(?i)[\(\[]\s*(official\s+(music\s+)?(video|audio|lyric\s+video|visualizer)|lyrics?(\s+video)?|audio|hd|hq|4k|mv)\s*[\)\]]`)
	punctRegex      = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)
)

const (
	// titleWeight is the share of the score taken by title similarity.
	titleWeight = 0.6
	// combinedWeight is the share taken by "artist title" similarity.
	combinedWeight = 0.25
	// durationWeight is the share taken by duration agreement.
	durationWeight = 0.15
)

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) NormalizeArtist(artist string) string {
	artist = n.basicNormalize(artist)

	artist = strings.ReplaceAll(artist, " and ", " & ")
	artist = strings.ReplaceAll(artist, " vs ", " vs. ")
	artist = strings.ReplaceAll(artist, " feat ", " feat. ")
	artist = strings.ReplaceAll(artist, " ft ", " ft. ")
	artist = strings.TrimSuffix(artist, " topic")

	return artist
}

// NormalizeTitle strips featuring credits, version tags and video
// decorations before the basic normalization.
func (n *Normalizer) NormalizeTitle(title string) string {
	title = videoNoiseRegex.ReplaceAllString(title, " ")
	title = featRegex.ReplaceAllString(title, " ")
	title = versionRegex.ReplaceAllString(title, " ")

	return n.basicNormalize(title)
}

// basicNormalize folds accents, punctuation, whitespace and case.
func (n *Normalizer) basicNormalize(text string) string {
	text = norm.NFKD.String(text)

	var result strings.Builder
	for _, r := range text {
		if !unicode.IsMark(r) {
			result.WriteRune(r)
		}
	}
	text = result.String()

	text = punctRegex.ReplaceAllString(text, " ")
	text = whitespaceRegex.ReplaceAllString(text, " ")

	return strings.TrimSpace(strings.ToLower(text))
}

// CalculateSimilarity is the longest common subsequence ratio of s1 and s2.
func (n *Normalizer) CalculateSimilarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}

	if len(s1) == 0 || len(s2) == 0 {
		return 0.0
	}

	return float64(longestCommonSubsequence(s1, s2)) / float64(max(len(s1), len(s2)))
}

func longestCommonSubsequence(s1, s2 string) int {
	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)

	for i := 1; i <= len(s1); i++ {
		for j := 1; j <= len(s2); j++ {
			if s1[i-1] == s2[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}

	return prev[len(s2)]
}

// DurationTolerance is 1 within 30s, falling linearly to 0 at 2m apart.
func (n *Normalizer) DurationTolerance(d1, d2 time.Duration) float64 {
	diff := d1 - d2
	if diff < 0 {
		diff = -diff
	}
	tolerance := 30 * time.Second

	if diff <= tolerance {
		return 1.0
	}

	maxDiff := 2 * time.Minute
	if diff >= maxDiff {
		return 0.0
	}

	return 1.0 - float64(diff-tolerance)/float64(maxDiff-tolerance)
}

// Query is the catalog track being looked for.
type Query struct {
	Title    string
	Artist   string
	Duration time.Duration
}

// Candidate is one search result.
type Candidate struct {
	Title    string
	Channel  string
	Duration time.Duration
}

// Score rates how well c matches q, between 0 and 1. Unknown durations on
// either side count as a neutral half match.
func (n *Normalizer) Score(q Query, c Candidate) float64 {
	wantTitle := n.NormalizeTitle(q.Title)
	gotTitle := n.NormalizeTitle(c.Title)
	wantCombined := strings.TrimSpace(n.NormalizeArtist(q.Artist) + " " + wantTitle)

	gotCombined := gotTitle
	if channel := n.NormalizeArtist(c.Channel); channel != "" && !strings.Contains(gotTitle, channel) {
		gotCombined = channel + " " + gotTitle
	}

	// Video titles usually repeat the artist, so compare the title against
	// both forms and keep the better one.
	title := max(n.CalculateSimilarity(wantTitle, gotTitle), n.CalculateSimilarity(wantCombined, gotTitle))
	combined := n.CalculateSimilarity(wantCombined, gotCombined)

	duration := 0.5
	if q.Duration > 0 && c.Duration > 0 {
		duration = n.DurationTolerance(q.Duration, c.Duration)
	}

	return titleWeight*title + combinedWeight*combined + durationWeight*duration
}

// Best returns the index of the highest scoring candidate, or -1 when
// candidates is empty. Ties keep the earlier candidate.
func (n *Normalizer) Best(q Query, candidates []Candidate) (int, float64) {
	best, bestScore := -1, -1.0
	for i, c := range candidates {
		if s := n.Score(q, c); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, bestScore
}
