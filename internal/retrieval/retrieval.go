// Package retrieval ranks corpus chunks for a question by blending a
// keyword score (Okapi BM25) with a dense similarity score (cosine over
// hashed character trigrams). Both are min-max normalized before the blend:
//
//	score = alpha*dense + (1-alpha)*keyword
package retrieval

import (
	"hash/fnv"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/liliang-cn/ragdesk/internal/domain"
)

const (
	k1      = 1.5
	b       = 0.75
	epsilon = 0.25

	// Dimensions of the hashed trigram vectors
	Dimensions = 384
)

// Hit is a scored chunk
type Hit struct {
	Chunk        domain.Chunk
	Score        float64
	DenseScore   float64
	KeywordScore float64
}

// Index is an immutable in-memory search index
type Index struct {
	chunks  []domain.Chunk
	terms   []map[string]int
	lengths []int
	avgLen  float64
	idf     map[string]float64
	vectors [][]float32
	tables  int
}

// NewIndex builds an index over chunks
func NewIndex(chunks []domain.Chunk) *Index {
	ix := &Index{
		chunks:  chunks,
		terms:   make([]map[string]int, len(chunks)),
		lengths: make([]int, len(chunks)),
		vectors: make([][]float32, len(chunks)),
		idf:     make(map[string]float64),
	}

	df := make(map[string]int)
	tables := make(map[string]struct{})
	total := 0
	for i, c := range chunks {
		tokens := Tokenize(c.Text)
		freq := make(map[string]int, len(tokens))
		for _, t := range tokens {
			freq[t]++
		}
		for t := range freq {
			df[t]++
		}
		ix.terms[i] = freq
		ix.lengths[i] = len(tokens)
		ix.vectors[i] = Embed(c.Text)
		tables[c.Table] = struct{}{}
		total += len(tokens)
	}
	ix.tables = len(tables)
	if len(chunks) > 0 {
		ix.avgLen = float64(total) / float64(len(chunks))
	}

	// Okapi idf with negative values floored to a fraction of the mean,
	// as rank_bm25 does.
	n := float64(len(chunks))
	sum := 0.0
	var negative []string
	for t, freq := range df {
		v := math.Log(n-float64(freq)+0.5) - math.Log(float64(freq)+0.5)
		ix.idf[t] = v
		sum += v
		if v < 0 {
			negative = append(negative, t)
		}
	}
	if len(df) > 0 {
		floor := epsilon * sum / float64(len(df))
		for _, t := range negative {
			ix.idf[t] = floor
		}
	}

	return ix
}

// Len returns the number of indexed chunks
func (ix *Index) Len() int {
	return len(ix.chunks)
}

// Tables returns the number of distinct source tables
func (ix *Index) Tables() int {
	return ix.tables
}

// Search returns at most k hits with a positive blended score, best first
func (ix *Index) Search(query string, alpha float64, k int) []Hit {
	if len(ix.chunks) == 0 || k <= 0 {
		return nil
	}
	alpha = domain.ClampAlpha(alpha)

	keyword := ix.keywordScores(Tokenize(query))
	dense := ix.denseScores(Embed(query))
	normalize(keyword)
	normalize(dense)

	hits := make([]Hit, 0, len(ix.chunks))
	for i := range ix.chunks {
		score := alpha*dense[i] + (1-alpha)*keyword[i]
		if score <= 0 {
			continue
		}
		hits = append(hits, Hit{
			Chunk:        ix.chunks[i],
			Score:        score,
			DenseScore:   dense[i],
			KeywordScore: keyword[i],
		})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits
}

func (ix *Index) keywordScores(query []string) []float64 {
	scores := make([]float64, len(ix.chunks))
	if ix.avgLen == 0 {
		return scores
	}
	for _, q := range query {
		idf, ok := ix.idf[q]
		if !ok {
			continue
		}
		for i, freq := range ix.terms {
			f := float64(freq[q])
			if f == 0 {
				continue
			}
			norm := 1 - b + b*float64(ix.lengths[i])/ix.avgLen
			scores[i] += idf * f * (k1 + 1) / (f + k1*norm)
		}
	}
	return scores
}

func (ix *Index) denseScores(q []float32) []float64 {
	scores := make([]float64, len(ix.vectors))
	for i, v := range ix.vectors {
		var dot float64
		for d := range v {
			dot += float64(v[d]) * float64(q[d])
		}
		scores[i] = dot
	}
	return scores
}

// normalize rescales scores to [0,1] in place; a constant slice becomes zeros
func normalize(scores []float64) {
	if len(scores) == 0 {
		return
	}
	lo, hi := scores[0], scores[0]
	for _, s := range scores[1:] {
		lo = math.Min(lo, s)
		hi = math.Max(hi, s)
	}
	if math.Abs(hi-lo) < 1e-12 {
		for i := range scores {
			scores[i] = 0
		}
		return
	}
	for i := range scores {
		scores[i] = (scores[i] - lo) / (hi - lo)
	}
}

// Tokenize lowercases text and splits it on anything but letters and digits
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Embed maps text to an L2-normalized vector of hashed word trigrams. Each
// token is padded with spaces so short words still yield a trigram.
func Embed(text string) []float32 {
	vec := make([]float32, Dimensions)
	h := fnv.New32a()
	for _, tok := range Tokenize(text) {
		runes := []rune(" " + tok + " ")
		for i := 0; i+3 <= len(runes); i++ {
			h.Reset()
			h.Write([]byte(string(runes[i : i+3])))
			vec[h.Sum32()%Dimensions]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
