package model

import (
	"sort"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind identifies what a post is. Values are lowercase.
type Kind string

const (
	KindGeneric    Kind = "generic"
	KindEntry      Kind = "entry"
	KindLike       Kind = "like"
	KindStatus     Kind = "status"
	KindWatching   Kind = "watching"
	KindReply      Kind = "reply"
	KindPhoto      Kind = "photo"
	KindCheckin    Kind = "checkin"
	KindListen     Kind = "listen"
	KindStaticPage Kind = "staticpage"
	KindPlay       Kind = "play"
	KindRecipe     Kind = "recipe"
	KindReview     Kind = "review"
	KindRSVP       Kind = "rsvp"
)

// KindInfo is the capability table row for a kind.
type KindInfo struct {
	Kind    Kind
	Name    string // display name
	Icon    string
	Aliases []string
	// Derive extracts kind-specific fields. Missing source data yields
	// missing keys, never an error.
	Derive func(p *Post) map[string]any
}

var kindTable = []KindInfo{
	{Kind: KindEntry, Name: "Blog Posts", Icon: "document-text-outline", Aliases: []string{"posts"}, Derive: deriveEntry},
	{Kind: KindLike, Name: "Interactions", Icon: "magnet", Aliases: []string{"bookmarkedpages", "bookmark", "repost"}, Derive: deriveLike},
	{Kind: KindStatus, Name: "Microblog Posts", Icon: "chatbox-ellipses-outline", Aliases: []string{"statusupdates"}},
	{Kind: KindWatching, Name: "TV and Movie History", Icon: "film-outline", Aliases: []string{"watch", "media"}, Derive: deriveWatching},
	{Kind: KindReply, Name: "Replies", Icon: "arrow-redo-circle-outline", Aliases: []string{"replies"}, Derive: deriveReply},
	{Kind: KindPhoto, Name: "Photos", Icon: "image-outline", Aliases: []string{"photos", "media"}, Derive: derivePhoto},
	{Kind: KindCheckin, Name: "Checkins", Icon: "navigate-circle-outline", Aliases: []string{"locations"}, Derive: deriveCheckin},
	{Kind: KindListen, Name: "Podcast History", Icon: "mic-circle-outline", Aliases: []string{"media"}, Derive: deriveListen},
	{Kind: KindStaticPage, Name: "Pages", Icon: "document-text-outline", Aliases: []string{"pages"}},
	{Kind: KindPlay, Name: "Gaming History", Icon: "game-controller-outline", Aliases: []string{"playing", "media"}, Derive: derivePlay},
	{Kind: KindRecipe, Name: "Recipes", Icon: "fast-food-outline", Aliases: []string{"recipes"}, Derive: deriveRecipe},
	{Kind: KindReview, Name: "Reviews", Icon: "star-half-outline", Aliases: []string{"reviews"}, Derive: deriveReview},
	{Kind: KindRSVP, Name: "RSVPs", Icon: "checkmark-done-circle-outline", Aliases: []string{"rsvps"}, Derive: deriveRSVP},
}

var genericKind = KindInfo{Kind: KindGeneric, Name: "Generic Posts", Icon: "document-text-outline"}

// AliasDefault resolves to every kind.
const AliasDefault = "default"

var (
	kindsByName = map[Kind]KindInfo{}
	kindAliases = map[string][]Kind{AliasDefault: nil}
)

func init() {
	for _, info := range kindTable {
		kindsByName[info.Kind] = info
		addAlias(string(info.Kind), info.Kind)
		for _, a := range info.Aliases {
			addAlias(a, info.Kind)
		}
	}
}

func addAlias(alias string, k Kind) {
	for _, existing := range kindAliases[alias] {
		if existing == k {
			return
		}
	}
	kindAliases[alias] = append(kindAliases[alias], k)
}

// LookupKind returns the table row for k, falling back to the generic
// capability for unknown kinds.
func LookupKind(k Kind) KindInfo {
	if info, ok := kindsByName[Kind(strings.ToLower(string(k)))]; ok {
		return info
	}
	return genericKind
}

// KnownKinds lists display names by kind, without static pages.
func KnownKinds() map[Kind]string {
	out := make(map[Kind]string, len(kindTable))
	for _, info := range kindTable {
		if info.Kind == KindStaticPage {
			continue
		}
		out[info.Kind] = info.Name
	}
	return out
}

// ResolveKinds maps kind names and aliases to canonical kinds. all is true
// when any name is the default alias or names is empty; kinds is then nil.
// Unknown names are kept verbatim so arbitrary kinds stay queryable.
func ResolveKinds(names []string) (kinds []Kind, all bool) {
	if len(names) == 0 {
		return nil, true
	}
	seen := map[Kind]bool{}
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		if n == AliasDefault {
			return nil, true
		}
		targets, ok := kindAliases[n]
		if !ok {
			targets = []Kind{Kind(n)}
		}
		for _, k := range targets {
			if !seen[k] {
				seen[k] = true
				kinds = append(kinds, k)
			}
		}
	}
	if len(kinds) == 0 {
		return nil, true
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds, false
}

// DisplayName of an alias or kind, for feed titles.
func DisplayName(name string) string {
	n := strings.ToLower(name)
	if info, ok := kindsByName[Kind(n)]; ok {
		return info.Name
	}
	targets := kindAliases[n]
	if len(targets) == 1 {
		return kindsByName[targets[0]].Name
	}
	if n == AliasDefault {
		return "All Posts"
	}
	if n == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(n)
	return string(unicode.ToUpper(r)) + n[size:]
}

// DiscoverKind classifies an MF2 property bag that carries no post-kind.
func DiscoverKind(p Properties) Kind {
	switch {
	case p.Has("rsvp"):
		return KindRSVP
	case p.Has("in-reply-to"):
		return KindReply
	case p.Has("like-of"), p.Has("bookmark-of"), p.Has("repost-of"):
		return KindLike
	case p.Has("checkin"):
		return KindCheckin
	case p.Has("rating"):
		return KindReview
	case p.Has("watch-of"):
		return KindWatching
	case p.Has("listen-of"):
		return KindListen
	case p.Has("play-of"):
		return KindPlay
	case p.Has("ingredient"):
		return KindRecipe
	case p.Has("photo"):
		return KindPhoto
	case p.FirstString("name") != "":
		return KindEntry
	}
	return KindStatus
}

// Derived returns the kind-specific fields of p.
func (p *Post) Derived() map[string]any {
	info := LookupKind(p.Kind())
	if info.Derive == nil {
		return map[string]any{}
	}
	return info.Derive(p)
}

func objectProps(v any) Properties {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := m["properties"].(map[string]any)
	if !ok {
		return nil
	}
	out := make(Properties, len(raw))
	for k, vs := range raw {
		if list, ok := vs.([]any); ok {
			out[k] = list
		}
	}
	return out
}

func putString(out map[string]any, key string, p Properties, prop string) {
	if s := p.FirstString(prop); s != "" {
		out[key] = s
	}
}

func citation(p Properties) map[string]any {
	out := map[string]any{}
	putString(out, "name", p, "name")
	putString(out, "url", p, "url")
	putString(out, "photo", p, "photo")
	return out
}

func deriveEntry(p *Post) map[string]any {
	out := map[string]any{}
	putString(out, "title", p.Properties, "name")
	return out
}

func deriveLike(p *Post) map[string]any {
	out := map[string]any{}
	for _, pair := range [][2]string{{"like-of", "like"}, {"bookmark-of", "bookmark"}, {"repost-of", "repost"}} {
		if target := p.Properties.First(pair[0]); target != nil {
			switch t := target.(type) {
			case string:
				out["target"] = t
			default:
				if props := objectProps(t); props != nil {
					out["target"] = props.FirstString("url")
				}
			}
			out["interaction"] = pair[1]
			break
		}
	}
	return out
}

func deriveWatching(p *Post) map[string]any {
	out := map[string]any{}
	src := p.Properties.First("item")
	if src == nil {
		src = p.Properties.First("watch-of")
	}
	if props := objectProps(src); props != nil {
		out["watch_of"] = citation(props)
	}
	return out
}

func deriveReply(p *Post) map[string]any {
	out := map[string]any{}
	switch v := p.Properties.First("in-reply-to").(type) {
	case string:
		out["in_reply_to"] = v
	default:
		if props := objectProps(v); props != nil {
			out["in_reply_to"] = props.FirstString("url")
		}
	}
	return out
}

func derivePhoto(p *Post) map[string]any {
	photos := p.Properties["photo"]
	return map[string]any{
		"photos":  photos,
		"gallery": len(photos) > 1,
	}
}

func deriveCheckin(p *Post) map[string]any {
	out := map[string]any{}
	src := p.Properties.First("location")
	if src == nil {
		src = p.Properties.First("checkin")
	}
	props := objectProps(src)
	if props == nil {
		return out
	}
	loc := map[string]any{}
	putString(loc, "name", props, "name")
	for _, key := range []string{"latitude", "longitude"} {
		switch v := props.First(key).(type) {
		case float64:
			loc[key] = v
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				loc[key] = f
			}
		}
	}
	out["checkin_to"] = loc
	return out
}

func firstChildProps(p *Post) Properties {
	if len(p.Children) == 0 {
		return nil
	}
	return objectProps(map[string]any(p.Children[0]))
}

func deriveListen(p *Post) map[string]any {
	out := map[string]any{}
	props := firstChildProps(p)
	if props == nil {
		return out
	}
	listen := map[string]any{"name": "Listened To"}
	putString(listen, "name", props, "name")
	putString(listen, "url", props, "listen-of")
	putString(listen, "photo", props, "photo")
	out["listen_of"] = listen
	return out
}

func derivePlay(p *Post) map[string]any {
	play := map[string]any{}
	putString(play, "name", p.Properties, "name")
	putString(play, "photo", p.Properties, "photo")
	return map[string]any{"play_of": play}
}

func deriveRecipe(p *Post) map[string]any {
	out := map[string]any{}
	props := firstChildProps(p)
	if props == nil {
		return out
	}
	recipe := map[string]any{}
	putString(recipe, "name", props, "name")
	putString(recipe, "duration", props, "duration")
	putString(recipe, "yield", props, "yield")
	putString(recipe, "instructions", props, "instructions")
	putString(recipe, "photo", props, "photo")
	if ing := props["ingredient"]; len(ing) > 0 {
		recipe["ingredients"] = ing
	}
	out["recipe"] = recipe
	return out
}

func deriveReview(p *Post) map[string]any {
	out := map[string]any{}
	switch v := p.Properties.First("rating").(type) {
	case float64:
		out["rating"] = int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			out["rating"] = n
		}
	}
	if props := objectProps(p.Properties.First("item")); props != nil {
		out["review_of"] = citation(props)
	}
	return out
}

func deriveRSVP(p *Post) map[string]any {
	out := map[string]any{}
	putString(out, "rsvp", p.Properties, "rsvp")
	return out
}
