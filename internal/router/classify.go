package router

import (
	"net/http"
	"regexp"
	"strings"
)

// Class is the routing class of an intercepted request.
type Class int

// Request classes.
const (
	Unhandled Class = iota
	StaticAsset
	APIData
	HTMLNavigation
)

func (c Class) String() string {
	switch c {
	case StaticAsset:
		return "static"
	case APIData:
		return "api"
	case HTMLNavigation:
		return "html"
	default:
		return "unhandled"
	}
}

// Rules parameterize classification.
type Rules struct {
	// OriginHost is the hostname pages are served from, without port.
	OriginHost     string
	StaticPrefixes []string
	StaticSuffixes []string
	APIPrefix      string
	APIPatterns    []*regexp.Regexp
}

type predicate struct {
	class Class
	match func(*Request) bool
}

// Classifier evaluates an ordered predicate list; the first match wins.
type Classifier struct {
	predicates []predicate
}

// NewClassifier builds the predicate list in precedence order: static
// assets, then API data, then HTML navigation.
func NewClassifier(rules Rules) *Classifier {
	return &Classifier{predicates: []predicate{
		{StaticAsset, rules.isStatic},
		{APIData, rules.isAPI},
		{HTMLNavigation, acceptsHTML},
	}}
}

// Classify returns the request class. Non-GET requests are never
// classified.
func (c *Classifier) Classify(req *Request) Class {
	if req.Method != http.MethodGet {
		return Unhandled
	}
	for _, p := range c.predicates {
		if p.match(req) {
			return p.class
		}
	}
	return Unhandled
}

func (r Rules) isStatic(req *Request) bool {
	path := req.URL.Path
	for _, p := range r.StaticPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	if !strings.EqualFold(req.URL.Hostname(), r.OriginHost) {
		return true
	}
	for _, s := range r.StaticSuffixes {
		if strings.HasSuffix(path, s) {
			return true
		}
	}
	return false
}

func (r Rules) isAPI(req *Request) bool {
	path := req.URL.Path
	if r.APIPrefix != "" && strings.HasPrefix(path, r.APIPrefix) {
		return true
	}
	for _, re := range r.APIPatterns {
		if re.MatchString(path) {
			return true
		}
	}
	return false
}

func acceptsHTML(req *Request) bool {
	return strings.Contains(req.Accept(), "text/html")
}
