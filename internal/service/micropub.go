package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cleverdevil/dwell/internal/index"
	"github.com/cleverdevil/dwell/internal/model"
	"github.com/cleverdevil/dwell/internal/queue"
	"github.com/cleverdevil/dwell/internal/repository"
	"github.com/cleverdevil/dwell/internal/telemetry"
)

// maxSlugAttempts bounds collision probing for one create.
const maxSlugAttempts = 1000

// Posts is the content store as seen by the mutation workflow.
type Posts interface {
	Write(p *model.Post) (string, error)
	Update(path string, mutate func(*model.Post) error) (*model.Post, error)
}

// Index is the query engine as seen by the mutation workflow.
type Index interface {
	Get(ctx context.Context, l index.Lookup) (*model.Post, error)
	Add(ctx context.Context, e repository.Entry) error
	Rebuild() *index.Job
}

// Result tells the transport how to answer a successful mutation.
type Result struct {
	Status   int
	Location string
}

// MicropubService turns authorized publish requests into content store
// writes and index refreshes.
type MicropubService struct {
	Posts       Posts
	Index       Index
	Events      Publisher
	Author      model.Card
	Syndication []model.SyndicationTarget
	Log         *zap.Logger
	Now         func() time.Time

	// mu serializes URL assignment with the write that claims it.
	mu       sync.Mutex
	assigned map[string]struct{}
}

func NewMicropubService(posts Posts, idx Index, events Publisher, author model.Card, log *zap.Logger) *MicropubService {
	if events == nil {
		events = NopPublisher{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &MicropubService{
		Posts:    posts,
		Index:    idx,
		Events:   events,
		Author:   author,
		Log:      log,
		Now:      time.Now,
		assigned: map[string]struct{}{},
	}
}

// Handle checks the scope an action needs and dispatches it.
func (s *MicropubService) Handle(ctx context.Context, scopes model.Scopes, req *Request) (Result, error) {
	switch req.Action {
	case ActionUpdate:
		if err := EnforceScope(scopes, model.ScopeUpdate); err != nil {
			return Result{}, err
		}
		return Result{Status: http.StatusNoContent}, s.Update(ctx, req.URL, req.Update)
	case ActionDelete:
		if err := EnforceScope(scopes, model.ScopeDelete); err != nil {
			return Result{}, err
		}
		return Result{Status: http.StatusNoContent}, s.Delete(ctx, req.URL)
	case ActionUndelete:
		if err := EnforceScope(scopes, model.ScopeUndelete); err != nil {
			return Result{}, err
		}
		return Result{Status: http.StatusNoContent}, s.Undelete(ctx, req.URL)
	default:
		if err := EnforceScope(scopes, model.ScopeCreate); err != nil {
			return Result{}, err
		}
		loc, err := s.Create(ctx, req.Post)
		if err != nil {
			return Result{}, err
		}
		return Result{Status: http.StatusAccepted, Location: loc}, nil
	}
}

// Create stamps defaults onto p, assigns its id and URL, writes it and
// indexes it. An index failure schedules a rebuild instead of failing the
// request. It returns the new URL.
func (s *MicropubService) Create(ctx context.Context, p *model.Post) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "micropub.create")
	defer span.End()

	if p == nil || p.Properties == nil {
		return "", BadRequest("Invalid request data")
	}
	props := p.Properties
	if len(p.Type) == 0 {
		p.Type = []string{"h-entry"}
	}
	if !props.Has("published") {
		props["published"] = []any{s.Now().UTC().Format(time.RFC3339)}
	}
	published, err := p.Published()
	if err != nil {
		return "", BadRequest("Invalid request: bad published date")
	}
	if !props.Has("author") && (s.Author.Name != "" || s.Author.URL != "") {
		props["author"] = []any{s.Author.HCard()}
	}
	if p.Children == nil {
		p.Children = []map[string]any{}
	}
	if !props.Has("post-kind") {
		props["post-kind"] = []any{string(model.DiscoverKind(props))}
	}
	delete(props, "deleted")
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	props["post-id"] = []any{id}

	link, err := s.store(ctx, p, published.UTC().Year())
	if err != nil {
		return "", err
	}

	s.Log.Info("post created", zap.String("post_id", id), zap.String("url", link), zap.String("kind", string(p.Kind())))
	s.publish(ctx, queue.PostCreated, p)
	return link, nil
}

// store assigns the post a free URL, writes it and indexes it. The lock
// spans URL choice through indexing so two creates cannot claim one slug.
func (s *MicropubService) store(ctx context.Context, p *model.Post, year int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	link, err := s.assignURL(ctx, year, slugFor(p))
	if err != nil {
		return "", err
	}
	p.Properties["url"] = []any{link}

	file, err := s.Posts.Write(p)
	if err != nil {
		return "", Internal(err)
	}
	s.assigned[link] = struct{}{}

	y, m, d := repository.PartitionOf(file)
	if err := s.Index.Add(ctx, repository.Entry{Path: file, Post: p, Year: y, Month: m, Day: d}); err != nil {
		s.Log.Warn("incremental index add failed; rebuilding", zap.Error(err), zap.String("post_id", p.ID()))
		s.Index.Rebuild()
	}
	return link, nil
}

// assignURL returns the first free /<year>/<slug> for base, trying base,
// base-1, base-2 and so on. Deleted posts keep their URL reserved.
func (s *MicropubService) assignURL(ctx context.Context, year int, base string) (string, error) {
	candidate := base
	for n := 1; n <= maxSlugAttempts; n++ {
		link := fmt.Sprintf("/%d/%s", year, candidate)
		taken, err := s.urlTaken(ctx, link)
		if err != nil {
			return "", Internal(err)
		}
		if !taken {
			return link, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, n)
	}
	return "", Internal(fmt.Errorf("no free slug for %q", base))
}

func (s *MicropubService) urlTaken(ctx context.Context, link string) (bool, error) {
	if _, ok := s.assigned[link]; ok {
		return true, nil
	}
	p, err := s.Index.Get(ctx, index.Lookup{Slug: link, IncludeDeleted: true})
	if err != nil {
		return false, err
	}
	return p != nil, nil
}

// Update applies u to the post at target. post-id and url are immutable.
func (s *MicropubService) Update(ctx context.Context, target string, u model.Update) error {
	if u.IsZero() {
		return BadRequest("Invalid request data")
	}
	if u.Touches("post-id") || u.Touches("url") {
		return BadRequest("Invalid request: post-id and url cannot be changed")
	}
	return s.mutate(ctx, target, u, queue.PostUpdated)
}

// Delete soft-deletes the post at target.
func (s *MicropubService) Delete(ctx context.Context, target string) error {
	return s.mutate(ctx, target, model.Update{Replace: model.Properties{"deleted": {true}}}, queue.PostDeleted)
}

// Undelete clears the soft-delete flag of the post at target.
func (s *MicropubService) Undelete(ctx context.Context, target string) error {
	return s.mutate(ctx, target, model.Update{Delete: model.Deletion{Keys: []string{"deleted"}}}, queue.PostUndeleted)
}

// mutate rewrites the stored document and schedules a full rebuild, since
// an update may change fields the incremental path derives once (kind,
// deleted).
func (s *MicropubService) mutate(ctx context.Context, target string, u model.Update, event string) error {
	ctx, span := telemetry.StartSpan(ctx, "micropub."+strings.TrimPrefix(event, "post."))
	defer span.End()

	p, err := s.resolve(ctx, target, true)
	if err != nil {
		return err
	}
	updated, err := s.Posts.Update(p.Filename, func(doc *model.Post) error {
		doc.Apply(u)
		return nil
	})
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return NotFound("Post not found.")
	case err != nil:
		return Internal(err)
	}
	s.Index.Rebuild()

	s.Log.Info("post mutated", zap.String("event", event), zap.String("post_id", updated.ID()))
	s.publish(ctx, event, updated)
	return nil
}

// Source returns the stored MF2 of a live post. With props set, only those
// properties are returned and the type is omitted.
func (s *MicropubService) Source(ctx context.Context, target string, props []string) (map[string]any, error) {
	p, err := s.resolve(ctx, target, false)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return map[string]any{"type": p.Type, "properties": p.Properties}, nil
	}
	out := model.Properties{}
	for _, k := range props {
		if v, ok := p.Properties[k]; ok {
			out[k] = v
		}
	}
	return map[string]any{"properties": out}, nil
}

// Config is the q=config response.
func (s *MicropubService) Config() map[string]any {
	return map[string]any{
		"media-endpoint": "/micropub/media",
		"syndicate-to":   s.syndicateTo(),
	}
}

// SyndicateTo is the q=syndicate-to response.
func (s *MicropubService) SyndicateTo() map[string]any {
	return map[string]any{"syndicate-to": s.syndicateTo()}
}

func (s *MicropubService) syndicateTo() []model.SyndicationTarget {
	if s.Syndication == nil {
		return []model.SyndicationTarget{}
	}
	return s.Syndication
}

// resolve finds a post by its URL. Absolute URLs are reduced to their path;
// /view/<id> paths resolve by id.
func (s *MicropubService) resolve(ctx context.Context, target string, includeDeleted bool) (*model.Post, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, BadRequest("Invalid request: missing url")
	}
	p := target
	if u, err := url.Parse(target); err == nil && (u.IsAbs() || u.Host != "") {
		p = u.Path
	}
	if p == "" {
		return nil, NotFound("Post not found.")
	}

	lookup := index.Lookup{Slug: p, IncludeDeleted: includeDeleted}
	if strings.HasPrefix(p, "/view/") {
		lookup = index.Lookup{ID: path.Base(p), IncludeDeleted: includeDeleted}
	}
	post, err := s.Index.Get(ctx, lookup)
	if err != nil {
		return nil, Internal(err)
	}
	if post == nil {
		return nil, NotFound("Post not found.")
	}
	if post.Filename == "" {
		return nil, Internal(fmt.Errorf("post %s has no backing file", post.ID()))
	}
	return post, nil
}

func (s *MicropubService) publish(ctx context.Context, typ string, p *model.Post) {
	ev := queue.PostEvent{
		Type:       typ,
		PostID:     p.ID(),
		URL:        p.URL(),
		Kind:       string(p.Kind()),
		OccurredAt: s.Now().UTC(),
	}
	for _, v := range p.Properties["mp-syndicate-to"] {
		if uid, ok := v.(string); ok {
			ev.Syndicate = append(ev.Syndicate, uid)
		}
	}
	if err := s.Events.Publish(context.WithoutCancel(ctx), ev); err != nil {
		s.Log.Warn("post event not published", zap.Error(err), zap.String("type", typ))
	}
}
