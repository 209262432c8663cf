package orchestrator

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/loadwatch/loadwatch/pkg/config"
	"github.com/loadwatch/loadwatch/pkg/models"
)

// modeHintConfidence is the domain confidence assigned when a structured
// mode hint overrides description matching.
const modeHintConfidence = 0.9

// router scores incident descriptions against the compiled intent and
// domain pattern tables. One scan per table; no external lookups.
type router struct {
	intents []compiledPattern
	domains []compiledPattern
}

type compiledPattern struct {
	re     *regexp.Regexp
	tag    string
	weight float64
}

// newRouter compiles the configured routing tables. A malformed pattern
// fails boot rather than silently dropping a route.
func newRouter(tables config.RoutingTables) (*router, error) {
	compile := func(rows []config.RoutingPattern, table string) ([]compiledPattern, error) {
		out := make([]compiledPattern, 0, len(rows))
		for _, row := range rows {
			re, err := regexp.Compile(row.Pattern)
			if err != nil {
				return nil, fmt.Errorf("invalid %s routing pattern %q: %w", table, row.Pattern, err)
			}
			out = append(out, compiledPattern{re: re, tag: row.Tag, weight: row.Weight})
		}
		return out, nil
	}

	intents, err := compile(tables.Intents, "intent")
	if err != nil {
		return nil, err
	}
	domains, err := compile(tables.Domains, "domain")
	if err != nil {
		return nil, err
	}
	return &router{intents: intents, domains: domains}, nil
}

// route classifies one incident. Pattern weights accumulate per tag and
// the heaviest tag wins; a structured mode hint overrides the domain
// scan. Overall confidence is the mean of the intent and domain scores.
func (r *router) route(description, modeHint string) models.RoutingDecision {
	intentTag, intentScore, intentMatches := scan(r.intents, description)
	domainTag, domainScore, domainMatches := scan(r.domains, description)

	if hinted := hintedDomain(modeHint); hinted != models.DomainUnknown {
		domainTag = string(hinted)
		domainScore = modeHintConfidence
		domainMatches = []string{"mode_hint:" + strings.ToLower(modeHint)}
	}

	intent := models.IntentUnknown
	if intentTag != "" {
		intent = models.Intent(intentTag)
	}
	domain := models.DomainUnknown
	if domainTag != "" {
		domain = models.Domain(domainTag)
	}

	return models.RoutingDecision{
		Intent:          intent,
		Domain:          domain,
		SkillID:         fmt.Sprintf("%s.%s", intent, domain),
		Confidence:      (intentScore + domainScore) / 2,
		MatchedPatterns: append(intentMatches, domainMatches...),
	}
}

// scan accumulates pattern weights per tag and returns the winning tag,
// its score capped at 1, and the patterns that voted for it.
func scan(patterns []compiledPattern, description string) (string, float64, []string) {
	scores := make(map[string]float64)
	matches := make(map[string][]string)
	for _, p := range patterns {
		if p.re.MatchString(description) {
			scores[p.tag] += p.weight
			matches[p.tag] = append(matches[p.tag], p.re.String())
		}
	}

	best := ""
	bestScore := 0.0
	for tag, score := range scores {
		if score > bestScore || (score == bestScore && tag < best) {
			best, bestScore = tag, score
		}
	}
	if bestScore > 1 {
		bestScore = 1
	}
	return best, bestScore, matches[best]
}

func hintedDomain(hint string) models.Domain {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "ocean", "vessel":
		return models.DomainOcean
	case "otr", "truck", "truckload", "over-the-road", "over_the_road", "ground":
		return models.DomainOverTheRoad
	case "drayage", "dray", "intermodal":
		return models.DomainDrayage
	case "air", "airfreight", "air-freight":
		return models.DomainAir
	default:
		return models.DomainUnknown
	}
}
