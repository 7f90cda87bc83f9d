package classify

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/triage/internal/triage"
)

//go:embed rules.yaml
var defaultPack []byte

// Pattern is a single heuristic rule in a pattern pack.
type Pattern struct {
	ID         string       `yaml:"id"`
	Tier       int          `yaml:"tier"`
	Zone       triage.Zone  `yaml:"zone"`
	Intent     string       `yaml:"intent"`
	Risk       float64      `yaml:"risk"`
	Confidence float64      `yaml:"confidence"`
	Match      PatternMatch `yaml:"match"`
}

// PatternMatch lists the conditions a message must meet. Keywords, domains,
// and senders are alternatives; when Also is set, at least one of its
// keywords must appear in addition.
type PatternMatch struct {
	Keywords []string `yaml:"keywords"`
	Domains  []string `yaml:"domains"`
	Senders  []string `yaml:"senders"`
	Also     []string `yaml:"also"`
}

// PackFile is the YAML root of a pattern pack.
type PackFile struct {
	Rules []Pattern `yaml:"rules"`
}

// Pack is a compiled, ordered pattern pack.
type Pack struct {
	rules []compiled
}

type compiled struct {
	Pattern
	keywords *regexp.Regexp
	also     *regexp.Regexp
}

// DefaultPack compiles the embedded pattern pack.
func DefaultPack() (*Pack, error) {
	return ParsePack(defaultPack)
}

// LoadPack reads and compiles a pattern pack from path.
func LoadPack(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern pack: %w", err)
	}
	return ParsePack(data)
}

// ParsePack compiles a YAML pattern pack. Rules keep their file order within a tier.
func ParsePack(data []byte) (*Pack, error) {
	var file PackFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse pattern pack: %w", err)
	}

	if len(file.Rules) == 0 {
		return nil, fmt.Errorf("pattern pack has no rules")
	}

	pack := &Pack{rules: make([]compiled, 0, len(file.Rules))}
	for i, p := range file.Rules {
		c, err := compile(p)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, p.ID, err)
		}
		pack.rules = append(pack.rules, c)
	}

	slices.SortStableFunc(pack.rules, func(a, b compiled) int {
		return b.Tier - a.Tier
	})

	return pack, nil
}

// Len returns the number of rules in the pack.
func (p *Pack) Len() int {
	return len(p.rules)
}

func compile(p Pattern) (compiled, error) {
	if p.ID == "" {
		return compiled{}, fmt.Errorf("id required")
	}
	if !p.Zone.Valid() {
		return compiled{}, fmt.Errorf("%w: %q", triage.ErrInvalidZone, p.Zone)
	}
	if len(p.Match.Keywords)+len(p.Match.Domains)+len(p.Match.Senders) == 0 {
		return compiled{}, fmt.Errorf("match requires keywords, domains, or senders")
	}

	p.Risk = clamp(p.Risk)
	p.Confidence = clamp(p.Confidence)

	for i, d := range p.Match.Domains {
		p.Match.Domains[i] = strings.ToLower(d)
	}
	for i, s := range p.Match.Senders {
		p.Match.Senders[i] = strings.ToLower(s)
	}

	return compiled{
		Pattern:  p,
		keywords: wordsRegex(p.Match.Keywords),
		also:     wordsRegex(p.Match.Also),
	}, nil
}

func wordsRegex(words []string) *regexp.Regexp {
	if len(words) == 0 {
		return nil
	}

	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = strings.ReplaceAll(regexp.QuoteMeta(strings.TrimSpace(w)), " ", `\s+`)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)\b`)
}

func (c *compiled) matches(m *triage.Message, text string) bool {
	hit := (c.keywords != nil && c.keywords.MatchString(text)) ||
		domainMatches(c.Match.Domains, m.SenderDomain) ||
		slices.Contains(c.Match.Senders, m.LocalPart())

	if !hit {
		return false
	}
	if c.also != nil && !c.also.MatchString(text) {
		return false
	}
	return true
}

// domainMatches reports whether any dot-separated label of domain contains one of candidates.
func domainMatches(candidates []string, domain string) bool {
	if domain == "" {
		return false
	}
	for label := range strings.SplitSeq(domain, ".") {
		for _, c := range candidates {
			if strings.Contains(label, c) {
				return true
			}
		}
	}
	return false
}

func clamp(v float64) float64 {
	return max(0, min(1, v))
}
