package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/lifecycle"
)

// sourceFunc enumerates the string lists a suggester ranks, one list
// per record.
type sourceFunc func(ctx context.Context) ([][]string, error)

// Suggester serves frequency-ranked lookup suggestions with a
// per-prefix cache. Any card or note change invalidates the cache; a
// token guards against a scan that raced an invalidation poisoning it.
type Suggester struct {
	store  *CardStore
	source sourceFunc

	mu    sync.Mutex
	token uint64
	cache map[string][]string
}

func newSuggester(s *CardStore, source sourceFunc) *Suggester {
	return &Suggester{
		store:  s,
		source: source,
		cache:  make(map[string][]string),
	}
}

// start watches the change feeds and drops the cache on every event.
func (g *Suggester) start(ctx context.Context) {
	cards := g.store.broker.SubscribeCards(ctx)
	notes := g.store.broker.SubscribeNotes(ctx)

	lifecycle.Go(ctx, func(c context.Context) error {
		for {
			select {
			case <-c.Done():
				return nil
			case _, ok := <-cards:
				if !ok {
					return nil
				}
			case _, ok := <-notes:
				if !ok {
					return nil
				}
			}
			g.invalidate()
		}
	})
}

func (g *Suggester) invalidate() {
	g.mu.Lock()
	g.token++
	g.cache = make(map[string][]string)
	g.mu.Unlock()
}

// Suggest returns up to limit strings matching the prefix
// (case-insensitively), most frequent first, ties broken
// alphabetically. An empty prefix ranks everything.
func (g *Suggester) Suggest(ctx context.Context, prefix string, limit int) ([]string, error) {
	key := strings.ToLower(prefix)

	g.mu.Lock()
	token := g.token
	if cached, ok := g.cache[key]; ok {
		g.mu.Unlock()
		return clampSuggestions(cached, limit), nil
	}
	g.mu.Unlock()

	lists, err := g.source(ctx)
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, list := range lists {
		for _, s := range list {
			if s == "" {
				continue
			}
			if key != "" && !strings.HasPrefix(strings.ToLower(s), key) {
				continue
			}
			counts[s]++
		}
	}

	ranked := make([]string, 0, len(counts))
	for s := range counts {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if counts[ranked[i]] != counts[ranked[j]] {
			return counts[ranked[i]] > counts[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	g.mu.Lock()
	if g.token == token {
		g.cache[key] = ranked
	}
	g.mu.Unlock()

	return clampSuggestions(ranked, limit), nil
}

func clampSuggestions(in []string, limit int) []string {
	if limit > 0 && len(in) > limit {
		in = in[:limit]
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// GetTags suggests tags ranked by how often cards use them.
func (s *CardStore) GetTags(ctx context.Context, prefix string, limit int) ([]string, error) {
	return s.tags.Suggest(ctx, prefix, limit)
}

// GetKeywords suggests keywords ranked by use across cards and notes.
func (s *CardStore) GetKeywords(ctx context.Context, prefix string, limit int) ([]string, error) {
	return s.keywords.Suggest(ctx, prefix, limit)
}

func tagSource(s *CardStore) sourceFunc {
	return func(ctx context.Context) ([][]string, error) {
		docs, err := s.db.AllDocs(ctx, CardPrefix+"*")
		if err != nil {
			return nil, err
		}
		lists := make([][]string, 0, len(docs))
		for _, doc := range docs {
			rec, err := decodeCardRecord(doc.Data)
			if err != nil {
				continue
			}
			lists = append(lists, rec.Tags)
		}
		return lists, nil
	}
}

func keywordSource(s *CardStore) sourceFunc {
	return func(ctx context.Context) ([][]string, error) {
		cards, err := s.db.AllDocs(ctx, CardPrefix+"*")
		if err != nil {
			return nil, err
		}
		notes, err := s.db.AllDocs(ctx, NotePrefix+"*")
		if err != nil {
			return nil, err
		}

		lists := make([][]string, 0, len(cards)+len(notes))
		for _, doc := range cards {
			rec, err := decodeCardRecord(doc.Data)
			if err != nil {
				continue
			}
			lists = append(lists, rec.Keywords)
		}
		for _, doc := range notes {
			rec, err := decodeNoteRecord(doc.Data)
			if err != nil {
				continue
			}
			lists = append(lists, rec.Keywords)
		}
		return lists, nil
	}
}
