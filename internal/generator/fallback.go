package generator

import (
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"
)

// FallbackTables is the fixed dictionary used to build a deterministic
// image description when the backend quota is exhausted. Injected at
// construction; never mutated.
type FallbackTables struct {
	Subjects map[string]string
	Colors   map[string]string
	Styles   map[string]string
	Generic  map[string]string
}

// DefaultFallbackTables returns the built-in fallback dictionaries
func DefaultFallbackTables() *FallbackTables {
	return &FallbackTables{
		Subjects: map[string]string{
			"coffee":     "a cup of freshly brewed coffee",
			"car":        "a sleek car on an open road",
			"shoes":      "a pair of stylish shoes",
			"pizza":      "a wood-fired pizza",
			"laptop":     "a laptop on a clean desk",
			"phone":      "a smartphone in hand",
			"smartphone": "a smartphone in hand",
			"watch":      "a wristwatch in close-up",
			"dress":      "an elegant dress on display",
			"book":       "a stack of books",
			"house":      "a bright modern house",
			"gym":        "a well-equipped gym",
			"travel":     "a scenic travel destination",
			"food":       "a beautifully plated dish",
		},
		Colors: map[string]string{
			"red":    "warm red",
			"blue":   "deep blue",
			"green":  "fresh green",
			"black":  "bold black",
			"white":  "clean white",
			"gold":   "golden",
			"golden": "golden",
		},
		Styles: map[string]string{
			"modern":       "modern",
			"vintage":      "vintage",
			"minimalist":   "minimalist",
			"luxury":       "luxurious",
			"professional": "professional",
			"elegant":      "elegant",
		},
		Generic: map[string]string{
			"technology": "a clean workspace with modern devices and soft lighting",
			"food":       "an appetizing dish styled on a rustic table",
			"fashion":    "a styled outfit laid out on a neutral background",
			"travel":     "a scenic landscape under golden-hour light",
			"fitness":    "an athlete training in a bright gym",
			"business":   "a professional team collaborating in a modern office",
		},
	}
}

const genericDescription = "a vibrant promotional image with clean composition and natural lighting"

// Describe builds a deterministic description from prompt keywords.
// Longest matching keyword wins per dictionary; no subject match falls
// back to the category-keyed generic description.
func (t *FallbackTables) Describe(prompt, category string) string {
	lower := strings.ToLower(prompt)

	subject := longestMatch(lower, t.Subjects)
	if subject == "" {
		if g, ok := t.Generic[strings.ToLower(category)]; ok {
			return g
		}
		return genericDescription
	}

	desc := "A photograph of " + subject
	if style := longestMatch(lower, t.Styles); style != "" {
		desc = "A " + style + " photograph of " + subject
	}
	if color := longestMatch(lower, t.Colors); color != "" {
		desc += fmt.Sprintf(", in %s tones", color)
	}
	if category != "" {
		desc += fmt.Sprintf(", styled for a %s campaign", strings.ToLower(category))
	}
	return desc
}

// longestMatch returns the dictionary value for the longest keyword
// contained in text. Equal lengths break lexicographically so the result
// is stable.
func longestMatch(text string, dict map[string]string) string {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	best := ""
	for _, k := range keys {
		if strings.Contains(text, k) && len(k) > len(best) {
			best = k
		}
	}
	if best == "" {
		return ""
	}
	return dict[best]
}

// ImagePools maps descriptions to a curated URL pool per category.
// Injected at construction; never mutated.
type ImagePools struct {
	Keywords map[string]string
	Pools    map[string][]string
	Generic  []string
}

// DefaultImagePools returns the built-in curated image pools
func DefaultImagePools() *ImagePools {
	return &ImagePools{
		Keywords: map[string]string{
			"laptop":      "technology",
			"phone":       "technology",
			"smartphone":  "technology",
			"workspace":   "technology",
			"device":      "technology",
			"coffee":      "food",
			"pizza":       "food",
			"dish":        "food",
			"restaurant":  "food",
			"dress":       "fashion",
			"shoes":       "fashion",
			"outfit":      "fashion",
			"watch":       "fashion",
			"landscape":   "travel",
			"beach":       "travel",
			"mountain":    "travel",
			"destination": "travel",
			"gym":         "fitness",
			"athlete":     "fitness",
			"training":    "fitness",
			"office":      "business",
			"team":        "business",
			"meeting":     "business",
		},
		Pools: map[string][]string{
			"technology": {
				"https://images.unsplash.com/photo-1498050108023-c5249f4df085",
				"https://images.unsplash.com/photo-1517336714731-489689fd1ca8",
				"https://images.unsplash.com/photo-1519389950473-47ba0277781c",
			},
			"food": {
				"https://images.unsplash.com/photo-1504674900247-0877df9cc836",
				"https://images.unsplash.com/photo-1495474472287-4d71bcdd2085",
				"https://images.unsplash.com/photo-1565299624946-b28f40a0ae38",
			},
			"fashion": {
				"https://images.unsplash.com/photo-1445205170230-053b83016050",
				"https://images.unsplash.com/photo-1483985988355-763728e1935b",
				"https://images.unsplash.com/photo-1523381210434-271e8be1f52b",
			},
			"travel": {
				"https://images.unsplash.com/photo-1507525428034-b723cf961d3e",
				"https://images.unsplash.com/photo-1469474968028-56623f02e42e",
				"https://images.unsplash.com/photo-1476514525535-07fb3b4ae5f1",
			},
			"fitness": {
				"https://images.unsplash.com/photo-1534438327276-14e5300c3a48",
				"https://images.unsplash.com/photo-1517836357463-d25dfeac3438",
				"https://images.unsplash.com/photo-1571019613454-1cb2f99b2d8b",
			},
			"business": {
				"https://images.unsplash.com/photo-1497366216548-37526070297c",
				"https://images.unsplash.com/photo-1556761175-5973dc0f32e7",
				"https://images.unsplash.com/photo-1522071820081-009f0129c71c",
			},
		},
		Generic: []string{
			"https://images.unsplash.com/photo-1557683316-973673baf926",
			"https://images.unsplash.com/photo-1558591710-4b4a1ae0f04d",
			"https://images.unsplash.com/photo-1557682250-33bd709cbe85",
		},
	}
}

// Resolve maps a description to a pool URL by keyword scoring: the
// longest matching keyword wins, with a bonus for matches on word
// boundaries. Ties pick uniformly among the tied categories; the URL is
// then drawn uniformly at random from that category's pool. No positive
// score falls through to the generic pool.
func (p *ImagePools) Resolve(description string) string {
	winners := p.topCategories(strings.ToLower(description))
	if len(winners) == 0 {
		return pickRandom(p.Generic)
	}

	pool := p.Pools[winners[rand.IntN(len(winners))]]
	if len(pool) == 0 {
		return pickRandom(p.Generic)
	}
	return pickRandom(pool)
}

// topCategories returns the categories whose keywords tie for the best
// score, deduplicated so two same-score keywords from one category do
// not bias the tie-break draw
func (p *ImagePools) topCategories(text string) []string {
	bestScore := 0
	seen := map[string]bool{}
	var winners []string
	for keyword, category := range p.Keywords {
		score := keywordScore(text, keyword)
		switch {
		case score > bestScore:
			bestScore = score
			winners = []string{category}
			seen = map[string]bool{category: true}
		case score == bestScore && score > 0 && !seen[category]:
			seen[category] = true
			winners = append(winners, category)
		}
	}
	sort.Strings(winners)
	return winners
}

// keywordScore scores a keyword against text: 0 if absent, keyword
// length if present, plus a boundary bonus for whole-word matches
func keywordScore(text, keyword string) int {
	if !strings.Contains(text, keyword) {
		return 0
	}
	score := len(keyword)
	boundary := regexp.MustCompile(`\b` + regexp.QuoteMeta(keyword) + `\b`)
	if boundary.MatchString(text) {
		score += 5
	}
	return score
}

func pickRandom(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}
