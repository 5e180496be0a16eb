// Package chem_extractor finds chemical mentions in free-text queries and
// resolves them to structures.
package chem_extractor

import (
	"context"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/turtacn/ChemSight/internal/domain/molecule"
	"github.com/turtacn/ChemSight/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ChemSight/pkg/errors"
)

// ---------------------------------------------------------------------------
// Configuration
// ---------------------------------------------------------------------------

// ExtractorConfig holds tuneable parameters for the extraction pipeline.
type ExtractorConfig struct {
	MaxQueryLength   int           `mapstructure:"max_query_length"`
	MinConfidence    float64       `mapstructure:"min_confidence"`
	EnableLLM        bool          `mapstructure:"enable_llm"`
	LLMTimeout       time.Duration `mapstructure:"llm_timeout"`
	MaxFallbackWords int           `mapstructure:"max_fallback_words"`
}

// DefaultExtractorConfig returns production defaults.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxQueryLength:   1024,
		MinConfidence:    0.5,
		EnableLLM:        true,
		LLMTimeout:       10 * time.Second,
		MaxFallbackWords: 4,
	}
}

// Confidence assigned per extraction stage.
const (
	confidenceDictionary = 1.0
	confidenceCAS        = 0.95
	confidenceInChI      = 0.95
	confidenceSMILES     = 0.9
	confidenceFormula    = 0.7
	confidenceLLM        = 0.6
	confidenceQuery      = 0.5
)

// EntityExtractor proposes candidates for text that the dictionary and the
// pattern matchers could not handle.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]*Candidate, error)
}

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// Extractor produces ranked candidates from a query: dictionary matches
// first, then SMILES, CAS, formula and InChI patterns, then an optional
// fallback extractor, and finally the query itself when it is short.
type Extractor struct {
	dictionary *Dictionary
	validator  *Validator
	fallback   EntityExtractor
	config     ExtractorConfig
	logger     logging.Logger
}

// NewExtractor constructs an Extractor. fallback may be nil.
func NewExtractor(dictionary *Dictionary, fallback EntityExtractor, config ExtractorConfig, logger logging.Logger) *Extractor {
	if dictionary == nil {
		dictionary = DefaultDictionary()
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	if config.MaxQueryLength <= 0 {
		config.MaxQueryLength = DefaultExtractorConfig().MaxQueryLength
	}
	return &Extractor{
		dictionary: dictionary,
		validator:  NewValidator(),
		fallback:   fallback,
		config:     config,
		logger:     logger.Named("extractor"),
	}
}

// Dictionary returns the dictionary the extractor matches against.
func (e *Extractor) Dictionary() *Dictionary { return e.dictionary }

// Extract returns the candidates found in query, best first. An empty
// result is not an error; a blank query is.
func (e *Extractor) Extract(ctx context.Context, query string) ([]*Candidate, error) {
	text := Normalise(query)
	if text == "" {
		return nil, errors.InvalidParam("query cannot be empty")
	}
	text = truncate(text, e.config.MaxQueryLength)

	var found []*Candidate
	found = append(found, e.dictionaryCandidates(text)...)
	found = append(found, e.patternCandidates(text)...)
	found = resolveOverlaps(found)

	if len(found) == 0 && e.config.EnableLLM && e.fallback != nil {
		found = e.fallbackCandidates(ctx, text)
	}
	if len(found) == 0 {
		if c := e.queryCandidate(text); c != nil {
			found = append(found, c)
		}
	}

	kept := found[:0]
	for _, c := range found {
		if c.Confidence >= e.config.MinConfidence {
			kept = append(kept, c)
		}
	}
	sortCandidates(kept)

	e.logger.Debug("extracted candidates",
		logging.String("query", text),
		logging.Int("count", len(kept)))
	return kept, nil
}

// Best returns the highest ranked candidate, or nil.
func Best(candidates []*Candidate) *Candidate {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

func (e *Extractor) dictionaryCandidates(text string) []*Candidate {
	var out []*Candidate
	for _, m := range e.dictionary.Match(text) {
		out = append(out, &Candidate{
			Text:        text[m.Start:m.End],
			Type:        EntityCommonName,
			Confidence:  confidenceDictionary,
			StartOffset: m.Start,
			EndOffset:   m.End,
			Source:      SourceDictionary,
			Entry:       m.Entry,
		})
	}
	return out
}

var (
	reCAS   = regexp.MustCompile(`\b\d{2,7}-\d{2}-\d\b`)
	reInChI = regexp.MustCompile(`InChI=1S?/\S+`)
	reHill  = regexp.MustCompile(`^(?:[A-Z][a-z]?\d*)+$`)
)

func (e *Extractor) patternCandidates(text string) []*Candidate {
	var out []*Candidate
	add := func(c *Candidate) {
		if res := e.validator.Validate(c); res.Valid {
			out = append(out, c)
			return
		}
		e.logger.Debug("pattern candidate rejected", logging.String("candidate", c.String()))
	}

	for _, loc := range reCAS.FindAllStringIndex(text, -1) {
		add(&Candidate{Text: text[loc[0]:loc[1]], Type: EntityCASNumber, Confidence: confidenceCAS,
			StartOffset: loc[0], EndOffset: loc[1], Source: SourcePattern})
	}
	for _, loc := range reInChI.FindAllStringIndex(text, -1) {
		add(&Candidate{Text: text[loc[0]:loc[1]], Type: EntityInChI, Confidence: confidenceInChI,
			StartOffset: loc[0], EndOffset: loc[1], Source: SourcePattern})
	}
	for _, tok := range tokenise(text) {
		if strings.HasPrefix(tok.text, "InChI=") {
			continue
		}
		if f := molecule.Unsubscript(tok.text); looksLikeFormula(f) {
			add(&Candidate{Text: f, Type: EntityMolecularFormula, Confidence: confidenceFormula,
				StartOffset: tok.start, EndOffset: tok.end, Source: SourcePattern})
			continue
		}
		if looksLikeSMILES(tok.text) {
			add(&Candidate{Text: tok.text, Type: EntitySMILES, Confidence: confidenceSMILES,
				StartOffset: tok.start, EndOffset: tok.end, Source: SourcePattern})
		}
	}
	return out
}

func (e *Extractor) fallbackCandidates(ctx context.Context, text string) []*Candidate {
	if e.config.LLMTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.LLMTimeout)
		defer cancel()
	}
	cands, err := e.fallback.Extract(ctx, text)
	if err != nil {
		e.logger.Warn("fallback extraction failed", logging.Err(err))
		return nil
	}
	var out []*Candidate
	for _, c := range cands {
		if res := e.validator.Validate(c); res.Valid {
			out = append(out, c)
		}
	}
	return out
}

// queryCandidate treats a short query, stop words removed, as a name.
func (e *Extractor) queryCandidate(text string) *Candidate {
	var words []string
	for _, w := range strings.Fields(text) {
		w = strings.Trim(w, `.,;:!?"'`)
		if w != "" && !stopWords[strings.ToLower(w)] {
			words = append(words, w)
		}
	}
	if len(words) == 0 || len(words) > e.config.MaxFallbackWords {
		return nil
	}
	name := strings.Join(words, " ")
	typ := EntityCommonName
	if looksLikeIUPAC(name) {
		typ = EntityIUPACName
	}
	return &Candidate{
		Text:        name,
		Type:        typ,
		Confidence:  confidenceQuery,
		StartOffset: 0,
		EndOffset:   len(text),
		Source:      SourceQuery,
	}
}

// ---------------------------------------------------------------------------
// Overlap resolution and ranking
// ---------------------------------------------------------------------------

// resolveOverlaps keeps, among overlapping candidates, the longest one; ties
// go to higher confidence, then earlier source, then dictionary priority.
// Repeated mentions of the same compound are reported once.
func resolveOverlaps(cands []*Candidate) []*Candidate {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.length() != b.length() {
			return a.length() > b.length()
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.Source.rank() != b.Source.rank() {
			return a.Source.rank() < b.Source.rank()
		}
		if a.priority() != b.priority() {
			return a.priority() < b.priority()
		}
		return a.StartOffset < b.StartOffset
	})

	var kept []*Candidate
	seen := make(map[string]bool)
	for _, c := range cands {
		overlaps := false
		for _, k := range kept {
			if c.StartOffset < k.EndOffset && k.StartOffset < c.EndOffset {
				overlaps = true
				break
			}
		}
		if overlaps {
			continue
		}
		key := CacheKey(c.Type, c.Text)
		if c.Entry != nil {
			key = "entry::" + c.Entry.Name
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		kept = append(kept, c)
	}
	return kept
}

// sortCandidates orders by source, dictionary priority, confidence and
// position.
func sortCandidates(cands []*Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.Source.rank() != b.Source.rank() {
			return a.Source.rank() < b.Source.rank()
		}
		if a.priority() != b.priority() {
			return a.priority() < b.priority()
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		return a.StartOffset < b.StartOffset
	})
}

// ---------------------------------------------------------------------------
// Text utilities
// ---------------------------------------------------------------------------

// Normalise applies Unicode NFC, collapses whitespace runs to one space and
// trims the result.
func Normalise(text string) string {
	text = norm.NFC.String(text)
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

type token struct {
	text       string
	start, end int
}

// tokenise splits on whitespace and strips surrounding punctuation.
// Parentheses are stripped when they enclose the token or are unbalanced.
func tokenise(text string) []token {
	var out []token
	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		s, e := start, end
		for s < e && strings.IndexByte(`"'`, text[s]) >= 0 {
			s++
		}
		for e > s && strings.IndexByte(`"',;:!?.`, text[e-1]) >= 0 {
			e--
		}
		for e-s > 2 && text[s] == '(' && text[e-1] == ')' && balanced(text[s+1:e-1], '(', ')') {
			s++
			e--
		}
		if s < e && text[s] == '(' && strings.Count(text[s:e], "(") > strings.Count(text[s:e], ")") {
			s++
		}
		if s < e && text[e-1] == ')' && strings.Count(text[s:e], ")") > strings.Count(text[s:e], "(") {
			e--
		}
		if s < e {
			out = append(out, token{text: text[s:e], start: s, end: e})
		}
		start = -1
	}
	for i, r := range text {
		if unicode.IsSpace(r) {
			flush(i)
			continue
		}
		if start < 0 {
			start = i
		}
	}
	flush(len(text))
	return out
}

// looksLikeFormula accepts Hill-like tokens that carry a count or combine a
// two-letter symbol with another element, so that words such as "CO" or
// "NO" are not taken for formulas.
func looksLikeFormula(s string) bool {
	if len(s) < 2 || len(s) > 64 || !reHill.MatchString(s) {
		return false
	}
	if strings.IndexFunc(s, unicode.IsDigit) >= 0 {
		return true
	}
	elements, twoLetter := 0, false
	for i := 0; i < len(s); i++ {
		if s[i] >= 'A' && s[i] <= 'Z' {
			elements++
		} else if s[i] >= 'a' && s[i] <= 'z' {
			twoLetter = true
		}
	}
	return elements >= 2 && twoLetter
}

const smilesAlphabet = "BCNOPSFIHKLMRTVWXYZAGUDEcnospbeglradiutmfyzkhwvx0123456789@+-[]()=#$:/\\.%*"

// looksLikeSMILES is a cheap pre-filter; the validator runs the parser.
// Tokens without any SMILES syntax must be at least three organic-subset
// capitals containing carbon.
func looksLikeSMILES(s string) bool {
	if len(s) < 2 || len(s) > 512 {
		return false
	}
	indicators := 0
	organicOnly := true
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if strings.IndexByte(smilesAlphabet, ch) < 0 {
			return false
		}
		switch {
		case strings.IndexByte("()[]=#/\\%@", ch) >= 0, isDigit(ch):
			indicators++
		case strings.IndexByte("cnosp", ch) >= 0:
			indicators++
		}
		if strings.IndexByte("BCNOPSFI", ch) < 0 {
			organicOnly = false
		}
	}
	if indicators > 0 {
		return true
	}
	return organicOnly && len(s) >= 3 && strings.IndexByte(s, 'C') >= 0
}

var (
	reLocant      = regexp.MustCompile(`\d+(?:,\d+)*-[a-zA-Z]`)
	iupacSuffixes = []string{"ane", "ene", "yne", "ol", "al", "one", "oic acid", "amine", "amide", "ate", "ide", "ile"}
)

func looksLikeIUPAC(name string) bool {
	if reLocant.MatchString(name) {
		return true
	}
	lower := strings.ToLower(name)
	for _, s := range iupacSuffixes {
		if strings.HasSuffix(lower, s) && len(lower) > len(s)+3 {
			return true
		}
	}
	return false
}
