package model

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveKinds(t *testing.T) {
	tests := []struct {
		name    string
		in      []string
		want    []Kind
		wantAll bool
	}{
		{name: "empty means all", in: nil, wantAll: true},
		{name: "default alias", in: []string{"default"}, wantAll: true},
		{name: "canonical kind", in: []string{"entry"}, want: []Kind{KindEntry}},
		{name: "alias", in: []string{"Posts"}, want: []Kind{KindEntry}},
		{name: "multi-kind alias", in: []string{"media"}, want: []Kind{KindListen, KindPhoto, KindPlay, KindWatching}},
		{name: "dedupe", in: []string{"photos", "photo"}, want: []Kind{KindPhoto}},
		{name: "unknown kept verbatim", in: []string{"Poem"}, want: []Kind{"poem"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kinds, all := ResolveKinds(tt.in)
			assert.Equal(t, tt.wantAll, all)
			assert.Equal(t, tt.want, kinds)
		})
	}
}

func TestLookupKindFallsBackToGeneric(t *testing.T) {
	assert.Equal(t, KindReview, LookupKind("Review").Kind)
	assert.Equal(t, KindGeneric, LookupKind("unfurledurl").Kind)
	assert.Equal(t, "Interactions", DisplayName("bookmarkedpages"))
	assert.NotContains(t, KnownKinds(), KindStaticPage)
}

func TestDisplayNameOfUnknownKinds(t *testing.T) {
	assert.Equal(t, "Unfurledurl", DisplayName("unfurledurl"))
	got := DisplayName("éclair")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "Éclair", got)
	assert.Equal(t, "", DisplayName(""))
}

func TestDiscoverKind(t *testing.T) {
	tests := []struct {
		props Properties
		want  Kind
	}{
		{Properties{"rsvp": {"yes"}, "in-reply-to": {"https://e.com/ev"}}, KindRSVP},
		{Properties{"in-reply-to": {"https://e.com/p"}}, KindReply},
		{Properties{"bookmark-of": {"https://e.com/p"}}, KindLike},
		{Properties{"rating": {"4"}, "name": {"x"}}, KindReview},
		{Properties{"photo": {"/media/a.jpg"}}, KindPhoto},
		{Properties{"name": {"Title"}, "content": {"body"}}, KindEntry},
		{Properties{"content": {"just text"}}, KindStatus},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DiscoverKind(tt.props))
	}
}

func TestDerivedFields(t *testing.T) {
	review := &Post{Properties: Properties{
		"post-kind": {"review"},
		"rating":    {"4"},
		"item": {map[string]any{"type": []any{"h-product"}, "properties": map[string]any{
			"name": []any{"Dune"},
			"url":  []any{"https://example.com/dune"},
		}}},
	}}
	d := review.Derived()
	assert.Equal(t, 4, d["rating"])
	assert.Equal(t, map[string]any{"name": "Dune", "url": "https://example.com/dune"}, d["review_of"])

	like := &Post{Properties: Properties{"post-kind": {"like"}, "repost-of": {"https://e.com/x"}}}
	assert.Equal(t, map[string]any{"target": "https://e.com/x", "interaction": "repost"}, like.Derived())

	listen := &Post{
		Properties: Properties{"post-kind": {"listen"}},
		Children: []map[string]any{{"properties": map[string]any{
			"listen-of": []any{"https://pod.example/ep1"},
		}}},
	}
	assert.Equal(t, map[string]any{"name": "Listened To", "url": "https://pod.example/ep1"}, listen.Derived()["listen_of"])

	assert.Empty(t, (&Post{Properties: Properties{"post-kind": {"mystery"}}}).Derived())
}

func TestPostAccessors(t *testing.T) {
	p := &Post{Properties: Properties{
		"post-id":   {"abc"},
		"url":       {"/2024/hello"},
		"deleted":   {true},
		"published": {"2024-03-04T05:06:07.123456+00:00"},
		"content":   {map[string]any{"html": "<p>hi</p>", "value": "hi"}},
	}}
	assert.Equal(t, "abc", p.ID())
	assert.Equal(t, "/2024/hello", p.URL())
	assert.True(t, p.Deleted())
	assert.Equal(t, "hi", p.TextContent())

	ts, err := p.Published()
	require.NoError(t, err)
	assert.True(t, ts.Equal(time.Date(2024, 3, 4, 5, 6, 7, 123456000, time.UTC)))

	for _, s := range []string{"2024-03-04", "2024-03-04 05:06:07", "2024-03-04T05:06:07"} {
		_, err := ParseTime(s)
		assert.NoError(t, err, s)
	}
	_, err = ParseTime("yesterday")
	assert.Error(t, err)
}

func TestScopesAndMe(t *testing.T) {
	s := ParseScopes("create  update delete")
	assert.True(t, s.Has("update"))
	assert.False(t, s.Has("undelete"))
	assert.Equal(t, "create update delete", s.String())

	assert.Equal(t, "https://example.com/", NormalizeMe("https://example.com"))
	assert.Equal(t, "https://example.com/", NormalizeMe("https://example.com/"))
}
