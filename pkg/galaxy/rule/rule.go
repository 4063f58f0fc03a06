// Package rule implements the per-session filter rules: a (kind, mask,
// compiled regex) triple evaluated against an event's absolute path. Rule
// regexes are POSIX extended regular expressions; the standard library's
// regexp.CompilePOSIX is used since no third-party library in the example
// corpus offers POSIX ERE semantics (see DESIGN.md) and the standard
// library's implementation is the idiomatic Go answer to this exact
// requirement.
package rule

import (
	"fmt"
	"regexp"

	"github.com/gmunoz/galaxy/pkg/galaxy"
	"github.com/gmunoz/galaxy/pkg/galaxy/event"
)

// Kind distinguishes an include rule (WATCH) from an exclude rule
// (IGNORE_WATCH).
type Kind int

const (
	Include Kind = iota
	Exclude
)

// Rule is one entry in a session's ordered rule list.
type Rule struct {
	Kind  Kind
	Mask  event.Mask
	regex *regexp.Regexp
	// Source is the original regex text, retained for diagnostics.
	Source string
}

// Compile compiles pattern as a POSIX extended regular expression and
// returns a Rule. Compilation happens at rule-insertion time, so a
// malformed pattern is rejected immediately rather than causing a
// dispatch-time panic.
func Compile(kind Kind, mask event.Mask, pattern string) (Rule, error) {
	re, err := regexp.CompilePOSIX(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %v", galaxy.ErrRegexCompileFailed, pattern, err)
	}
	return Rule{Kind: kind, Mask: mask, regex: re, Source: pattern}, nil
}

// Matches reports whether the rule applies to an event with the given mask
// and absolute path: the mask must overlap the event's mask, and the regex
// must match the path. A zero mask never matches.
func (r Rule) Matches(eventMask event.Mask, path string) bool {
	if r.Mask == 0 {
		return false
	}
	if r.Mask&eventMask == 0 {
		return false
	}
	return r.regex.MatchString(path)
}

// Set is an ordered list of Rules evaluated with last-match-wins semantics
// between include and exclude.
type Set []Rule

// Verdict is the outcome of evaluating a Set against one event.
type Verdict int

const (
	NotMatched Verdict = iota
	Accepted
	Rejected
)

// Evaluate walks the rule set in insertion order: each
// matching rule overwrites the tentative verdict, and the verdict after the
// last matching rule is returned.
func (s Set) Evaluate(eventMask event.Mask, path string) Verdict {
	verdict := NotMatched
	for _, r := range s {
		if !r.Matches(eventMask, path) {
			continue
		}
		if r.Kind == Include {
			verdict = Accepted
		} else {
			verdict = Rejected
		}
	}
	return verdict
}
