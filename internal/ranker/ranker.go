package ranker

import (
	"sort"
	"strings"

	"github.com/0xADE/ade-launchd/internal/apps"
	"github.com/sahilm/fuzzy"
)

const (
	// MinimumMatchScore is the relevance floor: a match must score strictly
	// above it to be returned.
	MinimumMatchScore = 0

	// ResultLimit caps the number of results of one search.
	ResultLimit = 6
)

// Match is the score of one name against a query. Matched is false when the
// query is not a subsequence of the name.
type Match struct {
	Score   int
	Matched bool
}

// Scorer scores names against a query, returning one Match per name.
type Scorer interface {
	Score(query string, names []string) []Match
}

// FuzzyScorer is the default subsequence matcher.
type FuzzyScorer struct{}

// Leading-character penalty applied by the fuzzy package: 5 per skipped
// character, at most 15.
const (
	leadingCharPenalty    = 5
	maxLeadingCharPenalty = 15
)

type nameSource []string

func (s nameSource) String(i int) string { return s[i] }
func (s nameSource) Len() int            { return len(s) }

// Score matches query against every name. Scores are the fuzzy bonuses plus
// one per matched character, so any match scores at least 1 and long names
// are not pushed below the floor by unmatched characters.
func (FuzzyScorer) Score(query string, names []string) []Match {
	out := make([]Match, len(names))
	for _, m := range fuzzy.FindFrom(query, nameSource(names)) {
		out[m.Index] = Match{Score: matchScore(m), Matched: true}
	}
	return out
}

// matchScore removes the leading and unmatched-character penalties from m.
func matchScore(m fuzzy.Match) int {
	score := m.Score + len(m.Str) - len(m.MatchedIndexes)
	if len(m.MatchedIndexes) > 0 {
		score += min(m.MatchedIndexes[0]*leadingCharPenalty, maxLeadingCharPenalty)
	}
	return score + len(m.MatchedIndexes)
}

// Ranker orders candidates against a query.
type Ranker struct {
	Scorer   Scorer
	MinScore int
	Limit    int
}

// New returns a ranker with the default scorer, floor and limit.
func New() *Ranker {
	return &Ranker{Scorer: FuzzyScorer{}, MinScore: MinimumMatchScore, Limit: ResultLimit}
}

type scored struct {
	app   apps.Application
	score int
}

// Rank returns the candidates matching query, best first. Candidates with an
// alias are scored by the better of their name and alias. Ties on score go to
// the higher usage recency score and then keep input order. An empty query
// matches nothing.
func (r *Ranker) Rank(query string, candidates []apps.Application) []apps.Application {
	if strings.TrimSpace(query) == "" || len(candidates) == 0 {
		return nil
	}

	names := make([]string, 0, len(candidates))
	owners := make([]int, 0, len(candidates))
	for i, c := range candidates {
		names = append(names, c.Name)
		owners = append(owners, i)
		if c.Alias != "" && c.Alias != c.Name {
			names = append(names, c.Alias)
			owners = append(owners, i)
		}
	}

	best := make([]*Match, len(candidates))
	for j, m := range r.scorer().Score(query, names) {
		if !m.Matched {
			continue
		}
		i := owners[j]
		if best[i] == nil || m.Score > best[i].Score {
			m := m
			best[i] = &m
		}
	}

	var hits []scored
	for i, m := range best {
		if m == nil || m.Score <= r.MinScore {
			continue
		}
		hits = append(hits, scored{app: candidates[i], score: m.Score})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return hits[a].app.UsageRecencyScore > hits[b].app.UsageRecencyScore
	})

	if r.Limit > 0 && len(hits) > r.Limit {
		hits = hits[:r.Limit]
	}

	out := make([]apps.Application, len(hits))
	for i, h := range hits {
		out[i] = h.app
	}
	return out
}

func (r *Ranker) scorer() Scorer {
	if r.Scorer == nil {
		return FuzzyScorer{}
	}
	return r.Scorer
}
