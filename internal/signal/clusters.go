package signal

import (
	"regexp"
	"sort"
	"strings"

	"reviewradar/config"
)

var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "be": true, "been": true, "being": true,
	"have": true, "has": true, "had": true, "do": true, "does": true,
	"did": true, "will": true, "would": true, "could": true,
	"should": true, "may": true, "might": true, "must": true,
	"shall": true, "can": true, "need": true, "dare": true,
	"to": true, "of": true, "in": true, "for": true, "on": true,
	"with": true, "at": true, "by": true, "from": true, "as": true,
	"into": true, "through": true, "during": true, "before": true,
	"after": true, "above": true, "below": true,
	"good": true, "great": true, "nice": true, "love": true,
	"best": true, "awesome": true, "amazing": true,
}

// Filler phrases that carry no complaint signal. "sync failed" is a valid
// cluster; "good app" is not.
var genericPhrases = map[string]bool{
	"good app": true, "great app": true, "best app": true, "this app": true,
	"and there": true, "there s": true, "it s": true, "i m": true,
	"don t": true, "can t": true, "love it": true, "love this": true,
	"but i": true, "no way": true,
}

var tokenPattern = regexp.MustCompile(`\w+`)

// Phrase is a mined complaint phrase with its total occurrence count.
type Phrase struct {
	Text  string `json:"phrase"`
	Count int    `json:"count"`
}

// ClusterMiner extracts the dominant 2-3 word complaint phrases from
// negative review text. The entity's own name tokens are treated as stop
// words so "notion keeps crashing" and "keeps crashing" cluster together.
type ClusterMiner struct {
	stop map[string]bool
	cfg  config.ClusterConfig
}

func NewClusterMiner(appName string, cfg config.ClusterConfig) *ClusterMiner {
	stop := make(map[string]bool, len(stopWords)+4)
	for w := range stopWords {
		stop[w] = true
	}
	for _, tok := range tokenPattern.FindAllString(strings.ToLower(appName), -1) {
		stop[tok] = true
	}
	return &ClusterMiner{stop: stop, cfg: cfg}
}

// Mine returns the top phrases across the given texts, descending by
// count, ties broken by first appearance. A phrase must occur in at least
// MinDocCount distinct texts to qualify.
func (m *ClusterMiner) Mine(texts []string) []Phrase {
	type stat struct {
		count     int
		docs      int
		lastDoc   int
		firstSeen int
	}
	stats := make(map[string]*stat)
	order := 0

	record := func(phrase string, doc int) {
		s := stats[phrase]
		if s == nil {
			s = &stat{firstSeen: order, lastDoc: -1}
			stats[phrase] = s
			order++
		}
		s.count++
		if s.lastDoc != doc {
			s.docs++
			s.lastDoc = doc
		}
	}

	for doc, text := range texts {
		raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
		words := raw[:0:0]
		for _, w := range raw {
			if !m.stop[w] {
				words = append(words, w)
			}
		}
		for i := 0; i+1 < len(words); i++ {
			bigram := words[i] + " " + words[i+1]
			if len(bigram) > 4 && !genericPhrases[bigram] {
				record(bigram, doc)
			}
		}
		for i := 0; i+2 < len(words); i++ {
			trigram := words[i] + " " + words[i+1] + " " + words[i+2]
			if len(trigram) > 6 {
				record(trigram, doc)
			}
		}
	}

	minDocs := m.cfg.MinDocCount
	if minDocs < 1 {
		minDocs = 1
	}
	phrases := make([]string, 0, len(stats))
	for phrase, s := range stats {
		if s.docs >= minDocs {
			phrases = append(phrases, phrase)
		}
	}
	sort.Slice(phrases, func(i, j int) bool {
		a, b := stats[phrases[i]], stats[phrases[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		return a.firstSeen < b.firstSeen
	})

	topN := m.cfg.TopPhrases
	if topN <= 0 || topN > len(phrases) {
		topN = len(phrases)
	}
	out := make([]Phrase, 0, topN)
	for _, phrase := range phrases[:topN] {
		out = append(out, Phrase{Text: phrase, Count: stats[phrase].count})
	}
	return out
}
