package normalize

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"github.com/strykerhq/engagement/internal/engagement"
)

// Where the timeline instructions may live, depending on the search endpoint variant.
var instructionPaths = []string{
	"result.timeline_response.timeline.instructions",
	"result.timeline.instructions",
	"timeline.instructions",
}

// Where an entry keeps its tweet node.
var tweetPaths = []string{
	"content.content.tweet_results.result",
	"content.itemContent.tweet_results.result",
}

const addEntries = "TimelineAddEntries"

// Microblog parses a microblog search response.
//
// Unavailable tweets and tweets failing the relevance filter are skipped.
// Malformed tweets are logged and skipped; they never abort the batch.
func (n *Normalizer) Microblog(ctx context.Context, raw []byte) ([]engagement.Post, error) {
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("microblog response: %w", ErrInvalidPayload)
	}

	var (
		doc       = gjson.ParseBytes(raw)
		fetchedAt = n.now().UTC()
		posts     []engagement.Post
	)
	for _, entry := range timelineEntries(doc) {
		post, ok, err := n.microblogPost(entry, fetchedAt)
		if err != nil {
			slog.WarnContext(ctx, "dropping microblog item", "error", err)
			continue
		}
		if !ok {
			continue
		}
		posts = append(posts, post)
	}

	return posts, nil
}

// Flattens the entries of every "add entries" instruction.
func timelineEntries(doc gjson.Result) []gjson.Result {
	var instructions gjson.Result
	for _, p := range instructionPaths {
		if instructions = doc.Get(p); instructions.IsArray() {
			break
		}
	}

	var entries []gjson.Result
	for _, instr := range instructions.Array() {
		if firstString(instr.Get("__typename"), instr.Get("type")) != addEntries {
			continue
		}
		entries = append(entries, instr.Get("entries").Array()...)
	}

	return entries
}

// tweet binds every sub-object a field may be read from. All of them are bound
// before any field is derived.
type tweet struct {
	node    gjson.Result
	legacy  gjson.Result
	details gjson.Result
	user    gjson.Result
}

func bindTweet(entry gjson.Result) (tweet, bool) {
	var node gjson.Result
	for _, p := range tweetPaths {
		if node = entry.Get(p); node.Exists() {
			break
		}
	}
	if node.Get("__typename").String() == "TweetWithVisibilityResults" {
		node = node.Get("tweet")
	}
	if !node.IsObject() {
		return tweet{}, false
	}
	switch node.Get("__typename").String() {
	case "TweetUnavailable", "TweetTombstone":
		return tweet{}, false
	}

	return tweet{
		node:    node,
		legacy:  node.Get("legacy"),
		details: node.Get("details"),
		user:    node.Get("core.user_results.result"),
	}, true
}

// Returns false without an error when the tweet is simply not wanted.
func (n *Normalizer) microblogPost(entry gjson.Result, fetchedAt time.Time) (engagement.Post, bool, error) {
	t, ok := bindTweet(entry)
	if !ok {
		return engagement.Post{}, false, nil
	}

	text := sanitize(firstString(t.details.Get("full_text"), t.legacy.Get("full_text")))
	if !n.filter.IsRelevant(text) {
		return engagement.Post{}, false, nil
	}

	id := firstString(t.node.Get("rest_id"), t.legacy.Get("id_str"))
	if id == "" {
		return engagement.Post{}, false, fmt.Errorf("tweet without an id: %w", ErrMalformed)
	}

	publishedAt, err := t.publishedAt(fetchedAt)
	if err != nil {
		return engagement.Post{}, false, fmt.Errorf("tweet %s: %w", id, err)
	}

	author := t.author()
	handle := "i"
	if author.Handle != nil {
		handle = *author.Handle
	}

	return engagement.Post{
		Source:      engagement.SourceMicroblog,
		SourceID:    id,
		Text:        &text,
		URL:         fmt.Sprintf("https://twitter.com/%s/status/%s", handle, id),
		Media:       t.media(),
		Author:      author,
		Metrics:     t.metrics(),
		PublishedAt: publishedAt,
		FetchedAt:   fetchedAt,
	}, true, nil
}

// The legacy created_at is a different format than the epoch field:
// "Wed Oct 10 20:19:24 +0000 2018".
const legacyTimeLayout = time.RubyDate

// Candidates in order: epoch milliseconds on the details object, then the
// legacy textual timestamp. Each has its own parser. Without either the
// observation time is used.
func (t tweet) publishedAt(fallback time.Time) (time.Time, error) {
	if ms := t.details.Get("created_at_ms"); ms.Exists() {
		v := count(ms)
		if v == 0 {
			return time.Time{}, fmt.Errorf("bad created_at_ms %q: %w", ms.Raw, ErrMalformed)
		}
		return time.UnixMilli(v).UTC(), nil
	}

	if created := t.legacy.Get("created_at").String(); created != "" {
		ts, err := time.Parse(legacyTimeLayout, created)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad created_at %q: %w", created, ErrMalformed)
		}
		return ts.UTC(), nil
	}

	return fallback, nil
}

// Candidates in order: the extended entities list, then the flat media entities.
func (t tweet) media() []engagement.Media {
	items := t.legacy.Get("extended_entities.media").Array()
	if len(items) == 0 {
		items = t.node.Get("media_entities").Array()
	}

	media := []engagement.Media{}
	for _, m := range items {
		u := firstString(m.Get("media_url_https"), m.Get("media_info.original_img_url"))
		if u == "" {
			continue
		}
		media = append(media, engagement.Media{Type: mediaType(m.Get("type").String()), URL: u})
	}

	return media
}

func mediaType(providerType string) engagement.MediaType {
	switch providerType {
	case "video", "animated_gif":
		return engagement.MediaVideo
	}

	return engagement.MediaImage
}

// Candidates in order: the dedicated counts object, then the legacy object.
func (t tweet) metrics() engagement.Metrics {
	counts := t.node.Get("counts")
	if !counts.IsObject() {
		counts = t.legacy
	}
	views := count(t.node.Get("views.count"))

	return engagement.Metrics{
		Likes:  count(counts.Get("favorite_count")),
		Shares: count(counts.Get("retweet_count")),
		Views:  &views,
	}
}

// Candidates in order for each field: the user's core object, then its legacy object.
func (t tweet) author() engagement.Author {
	name := firstString(t.user.Get("core.name"), t.user.Get("legacy.name"))
	if name == "" {
		name = "Unknown"
	}
	handle := firstString(t.user.Get("core.screen_name"), t.user.Get("legacy.screen_name"))
	avatar := firstString(t.user.Get("avatar.image_url"), t.user.Get("legacy.profile_image_url_https"))

	var profile *string
	if handle != "" {
		profile = optional("https://twitter.com/" + handle)
	}

	return engagement.Author{
		Name:       name,
		Handle:     optional(handle),
		Avatar:     optional(avatar),
		ProfileURL: profile,
	}
}
