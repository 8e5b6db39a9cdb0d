package service

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/net/html"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/cleverdevil/dwell/internal/model"
)

const maxSlugLen = 40

// Slugify lowercases s, folds accents to ASCII where a base letter exists,
// replaces every other run of characters with a single dash and truncates
// to maxSlugLen. Scripts without an ASCII folding produce "".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	slug := b.String()
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return strings.Trim(slug, "-")
}

// slugSeeds lists the texts a new post's slug may be derived from, in
// order of preference: its name, its first textual content, then a phrase
// naming what it reacts to.
func slugSeeds(p *model.Post) []string {
	var seeds []string
	if name := strings.TrimSpace(p.Name()); name != "" {
		seeds = append(seeds, name)
	}
	if text := strings.TrimSpace(stripTags(p.TextContent())); text != "" {
		seeds = append(seeds, text)
	}
	for _, prop := range []struct{ key, phrase string }{
		{"like-of", "like of "},
		{"bookmark-of", "bookmark of "},
		{"repost-of", "repost of "},
	} {
		if target := citeTarget(p.Properties.First(prop.key)); target != "" {
			seeds = append(seeds, prop.phrase+target)
			break
		}
	}
	return seeds
}

// slugSeed is the preferred seed, or "" when p has none.
func slugSeed(p *model.Post) string {
	if seeds := slugSeeds(p); len(seeds) > 0 {
		return seeds[0]
	}
	return ""
}

// slugFor returns a non-empty base slug for p, taken from the first seed
// that survives Slugify.
func slugFor(p *model.Post) string {
	for _, seed := range slugSeeds(p) {
		if s := Slugify(seed); s != "" {
			return s
		}
	}
	return Slugify(uuid.NewString())
}

func citeTarget(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		props, _ := t["properties"].(map[string]any)
		for _, k := range []string{"url", "name"} {
			if list, ok := props[k].([]any); ok && len(list) > 0 {
				if s, ok := list[0].(string); ok {
					return s
				}
			}
		}
	}
	return ""
}

// stripTags returns the text nodes of an HTML fragment with entities
// decoded. Plain text passes through unchanged.
func stripTags(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return s
	}
	z := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
			b.WriteByte(' ')
		}
	}
}
