package responsetransformer

import (
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/always-cache/textfetch/http1"
	"github.com/always-cache/textfetch/pkg/locator"
)

// Rules adjust the caching headers of origin responses before they are
// interpreted. The first matching rule applies.
type Rules []Rule

type Rule struct {
	Prefix   string            `yaml:"prefix" toml:"prefix"`
	Path     string            `yaml:"path" toml:"path"`
	Default  string            `yaml:"default" toml:"default"`
	Override string            `yaml:"override" toml:"override"`
	Query    map[string]string `yaml:"query" toml:"query"`
}

// Apply sets the Cache-Control header of res according to the first rule
// matching u, the URL res was fetched from. It reports whether a rule matched.
func (r Rules) Apply(u locator.URL, res *http1.Response) bool {
	rule := r.find(u)
	if rule == nil {
		return false
	}
	applyRuleToResponse(*rule, res)
	return true
}

func applyRuleToResponse(rule Rule, res *http1.Response) {
	if res.Header == nil {
		res.Header = make(map[string]string)
	}
	if rule.Override != "" {
		log.Trace().Msg("Overriding Cache-Control header")
		res.Header["cache-control"] = rule.Override
	} else if _, ok := res.Header["cache-control"]; rule.Default != "" && !ok {
		log.Trace().Msg("Applying default Cache-Control header")
		res.Header["cache-control"] = rule.Default
	}
}

func (r Rules) find(u locator.URL) *Rule {
	path, rawQuery, _ := strings.Cut(u.Path, "?")
	log.Trace().Msgf("Finding rule for %s", u.Path)
rulesLoop:
	for i, rule := range r {
		if rule.Path != "" && rule.Path != path {
			continue
		}
		if rule.Prefix != "" && !strings.HasPrefix(path, rule.Prefix) {
			continue
		}
		if len(rule.Query) > 0 {
			qry, err := url.ParseQuery(rawQuery)
			if err != nil {
				continue
			}
			for name, value := range rule.Query {
				if value == "" && !qry.Has(name) {
					continue rulesLoop
				} else if value != "" && qry.Get(name) != value {
					continue rulesLoop
				}
			}
		}
		return &r[i]
	}
	return nil
}
