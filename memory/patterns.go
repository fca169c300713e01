package memory

import (
	"regexp"
	"sort"
	"strings"
)

// TechnologyClassifier extracts technology keywords from the string values of
// workflow step payloads. It is deliberately pluggable: the built-in regex
// classifier is a heuristic, not a parser, and can be replaced without
// touching the similarity/ranking algorithm.
type TechnologyClassifier interface {
	// Extract returns the distinct technologies mentioned in the values.
	Extract(values []string) []string
}

// RegexClassifier scans string values against a fixed vocabulary of
// technology patterns.
type RegexClassifier struct {
	patterns map[string]*regexp.Regexp
}

// NewRegexClassifier compiles the built-in vocabulary.
func NewRegexClassifier() *RegexClassifier {
	vocabulary := map[string]string{
		"react":      `(?i)\breact(\.js)?\b`,
		"vue":        `(?i)\bvue(\.js)?\b`,
		"angular":    `(?i)\bangular\b`,
		"typescript": `(?i)\b(typescript|\.tsx?)\b`,
		"javascript": `(?i)\b(javascript|\.jsx?|node(\.js)?)\b`,
		"python":     `(?i)\b(python|\.py)\b`,
		"go":         `(?i)\b(golang|\.go)\b`,
		"rust":       `(?i)\b(rust|\.rs)\b`,
		"java":       `(?i)\bjava\b`,
		"html":       `(?i)\bhtml\b`,
		"css":        `(?i)\b(css|sass|scss|tailwind)\b`,
		"docker":     `(?i)\bdocker(file)?\b`,
		"kubernetes": `(?i)\b(kubernetes|k8s)\b`,
		"database":   `(?i)\b(database|sql|postgres|mysql|sqlite|mongodb)\b`,
		"api":        `(?i)\b(api|rest|graphql|grpc)\b`,
		"testing":    `(?i)\b(test|jest|vitest|pytest)\b`,
	}

	patterns := make(map[string]*regexp.Regexp, len(vocabulary))
	for name, expr := range vocabulary {
		patterns[name] = regexp.MustCompile(expr)
	}
	return &RegexClassifier{patterns: patterns}
}

// Extract implements TechnologyClassifier.
func (c *RegexClassifier) Extract(values []string) []string {
	seen := make(map[string]bool)
	for _, value := range values {
		for name, pattern := range c.patterns {
			if !seen[name] && pattern.MatchString(value) {
				seen[name] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// WorkflowSummary is the per-workflow digest pattern recognition scores
// against keyword queries.
type WorkflowSummary struct {
	WorkflowID      string   `json:"workflow_id"`
	Phases          []string `json:"phases"`
	Agents          []string `json:"agents"`
	TotalDurationMs int64    `json:"total_duration_ms"`
	Success         bool     `json:"success"`
	Technologies    []string `json:"technologies"`
}

// PatternMatch is one ranked pattern recognition result. Score is the
// fraction of query keywords matched by the summary; Frequency is the
// fraction of other workflows judged similar to it.
type PatternMatch struct {
	Summary   WorkflowSummary `json:"summary"`
	Score     float64         `json:"score"`
	Frequency float64         `json:"frequency"`
}

// similarityThreshold is the minimum averaged Jaccard overlap (technologies,
// phases) for two workflows to count as recurring instances of one pattern.
const similarityThreshold = 0.7

// scoreThreshold filters summaries that match too few query keywords.
const scoreThreshold = 0.5

// IdentifyPatterns derives a summary for every retained workflow, scores each
// against the keyword list, keeps summaries scoring above 0.5 and weights them
// by how frequently similar workflows recur. Results are ordered by
// score x frequency descending and cached per keyword set; the cache is
// invalidated whenever a new step is recorded.
func (g *Graph) IdentifyPatterns(keywords []string) []PatternMatch {
	key := cacheKey(keywords)

	// Whole computation runs under the write lock so the cached result can
	// never capture a state older than a concurrent RecordWorkflowStep.
	g.mu.Lock()
	defer g.mu.Unlock()

	if cached, ok := g.patternCache[key]; ok {
		out := make([]PatternMatch, len(cached))
		copy(out, cached)
		return out
	}

	summaries := make([]WorkflowSummary, 0, len(g.workflowOrder))
	for _, workflowID := range g.workflowOrder {
		summaries = append(summaries, g.summarizeLocked(workflowID))
	}

	var matches []PatternMatch
	for i, summary := range summaries {
		score := keywordScore(summary, keywords)
		if score <= scoreThreshold {
			continue
		}

		similar := 0
		for j, other := range summaries {
			if i == j {
				continue
			}
			if workflowSimilarity(summary, other) >= similarityThreshold {
				similar++
			}
		}
		frequency := 0.0
		if len(summaries) > 1 {
			frequency = float64(similar) / float64(len(summaries)-1)
		}

		matches = append(matches, PatternMatch{Summary: summary, Score: score, Frequency: frequency})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		wa := matches[a].Score * matches[a].Frequency
		wb := matches[b].Score * matches[b].Frequency
		if wa != wb {
			return wa > wb
		}
		return matches[a].Score > matches[b].Score
	})

	cached := make([]PatternMatch, len(matches))
	copy(cached, matches)
	g.patternCache[key] = cached

	return matches
}

// summarizeLocked digests one workflow's step history. Caller must hold at
// least the read lock.
func (g *Graph) summarizeLocked(workflowID string) WorkflowSummary {
	steps := g.workflows[workflowID]

	summary := WorkflowSummary{WorkflowID: workflowID, Success: true}
	var values []string
	seenPhase := make(map[string]bool)
	seenAgent := make(map[string]bool)

	for _, step := range steps {
		if !seenPhase[step.Phase] {
			seenPhase[step.Phase] = true
			summary.Phases = append(summary.Phases, step.Phase)
		}
		if !seenAgent[step.Agent] {
			seenAgent[step.Agent] = true
			summary.Agents = append(summary.Agents, step.Agent)
		}
		summary.TotalDurationMs += step.DurationMs
		if !step.Success {
			summary.Success = false
		}
		values = collectStrings(step.Input, values)
		values = collectStrings(step.Output, values)
	}

	summary.Technologies = g.classifier.Extract(values)
	return summary
}

// keywordScore is the fraction of keywords matched anywhere across the
// summary's technologies, phases and agents (case-insensitive).
func keywordScore(summary WorkflowSummary, keywords []string) float64 {
	if len(keywords) == 0 {
		return 0
	}

	haystack := make([]string, 0, len(summary.Technologies)+len(summary.Phases)+len(summary.Agents))
	for _, v := range summary.Technologies {
		haystack = append(haystack, strings.ToLower(v))
	}
	for _, v := range summary.Phases {
		haystack = append(haystack, strings.ToLower(v))
	}
	for _, v := range summary.Agents {
		haystack = append(haystack, strings.ToLower(v))
	}

	matched := 0
	for _, keyword := range keywords {
		kw := strings.ToLower(keyword)
		for _, candidate := range haystack {
			if strings.Contains(candidate, kw) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(keywords))
}

// workflowSimilarity averages the Jaccard overlap of two workflows'
// technologies and phases.
func workflowSimilarity(a, b WorkflowSummary) float64 {
	return (jaccard(a.Technologies, b.Technologies) + jaccard(a.Phases, b.Phases)) / 2
}

func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	intersection := 0
	union := len(set)
	seen := make(map[string]bool, len(b))
	for _, v := range b {
		if seen[v] {
			continue
		}
		seen[v] = true
		if set[v] {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 1.0
	}
	return float64(intersection) / float64(union)
}

// collectStrings walks an opaque payload value appending every string leaf.
func collectStrings(value any, out []string) []string {
	switch v := value.(type) {
	case string:
		out = append(out, v)
	case map[string]any:
		for _, nested := range v {
			out = collectStrings(nested, out)
		}
	case []any:
		for _, nested := range v {
			out = collectStrings(nested, out)
		}
	case []string:
		out = append(out, v...)
	}
	return out
}

func cacheKey(keywords []string) string {
	sorted := make([]string, len(keywords))
	for i, kw := range keywords {
		sorted[i] = strings.ToLower(kw)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}
