package catalog

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-delivery-bot/internal/domain"
)

// Hit is a ranked product with its similarity score.
//
// Scoring uses Jaccard similarity between the query token set and the
// product's token set (title, subcategory and composition):
// score = |Q ∩ P| / |Q ∪ P|.
type Hit struct {
	Product domain.Product
	Score   float64
}

// Option customizes search indexing.
type Option func(*searchConfig)

type searchConfig struct {
	stopwords map[string]struct{}
}

// WithStopwords drops the given words from both documents and queries.
func WithStopwords(words []string) Option {
	return func(c *searchConfig) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) > 0 {
			c.stopwords = m
		}
	}
}

type doc struct {
	pos    int
	text   string
	tokens map[string]struct{}
}

type index struct {
	cfg      searchConfig
	products []domain.Product
	docs     []doc
}

func buildIndex(products []domain.Product, opts ...Option) *index {
	var cfg searchConfig
	for _, o := range opts {
		o(&cfg)
	}
	ix := &index{cfg: cfg, products: products, docs: make([]doc, 0, len(products))}
	for i, p := range products {
		text := strings.TrimSpace(normalizeWhitespace(p.Title + " " + p.Subcategory + " " + p.Composition))
		toks := tokenize(text, cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		ix.docs = append(ix.docs, doc{pos: i, text: text, tokens: toks})
	}
	return ix
}

// TopK returns up to k products by descending score. Ties prefer the shorter
// document, then catalog order. k <= 0 means 5.
func (ix *index) TopK(q string, k int) []Hit {
	if len(ix.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 5
	}
	qTokens := tokenize(q, ix.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}

	type scored struct {
		pos      int
		score    float64
		lenRunes int
	}
	buf := make([]scored, 0, len(ix.docs))
	for _, d := range ix.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(len(qTokens) + len(d.tokens) - over)
		buf = append(buf, scored{
			pos:      d.pos,
			score:    float64(over) / union,
			lenRunes: utf8.RuneCountInString(d.text),
		})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		if buf[a].lenRunes != buf[b].lenRunes {
			return buf[a].lenRunes < buf[b].lenRunes
		}
		return buf[a].pos < buf[b].pos
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Hit, k)
	for i := 0; i < k; i++ {
		out[i] = Hit{Product: ix.products[buf[i].pos], Score: buf[i].score}
	}
	return out
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+\p{L}*`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if _, skip := stop[w]; skip {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) > len(b) {
		a, b = b, a
	}
	n := 0
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}
