package fault

import (
	"strconv"
	"strings"
)

// MaxIssues bounds how many validation issues are reported to the caller
const MaxIssues = 8

// Issue is one structural problem found in an input, located by Path.
// Path elements are field names (string) or array positions (int).
type Issue struct {
	Path    []any  `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	parts := make([]string, len(i.Path))
	for n, p := range i.Path {
		switch v := p.(type) {
		case int:
			parts[n] = "[" + strconv.Itoa(v) + "]"
		case string:
			parts[n] = v
		}
	}
	return "[" + strings.Join(parts, ".") + "] " + i.Message
}

// Issues is a list of validation problems usable as an error
type Issues []Issue

func (is Issues) Error() string {
	return formatIssues(is)
}

func formatIssues(issues []Issue) string {
	if len(issues) > MaxIssues {
		issues = issues[:MaxIssues]
	}
	msgs := make([]string, len(issues))
	for i, issue := range issues {
		msgs[i] = issue.String()
	}
	return strings.Join(msgs, "; ")
}

// Unprocessable reports a shape validation failure keeping at most MaxIssues issues
func Unprocessable(code string, issues []Issue) *Error {
	kept := issues
	if len(kept) > MaxIssues {
		kept = kept[:MaxIssues]
	}
	return &Error{
		Kind:    KindUnprocessable,
		Code:    code,
		Message: formatIssues(kept),
		Data:    map[string]any{"issues": kept},
		Cause:   Issues(issues),
	}
}

// Prefix returns a copy of issues with prefix prepended to each path
func Prefix(issues []Issue, prefix ...any) []Issue {
	out := make([]Issue, len(issues))
	for i, issue := range issues {
		path := make([]any, 0, len(prefix)+len(issue.Path))
		path = append(path, prefix...)
		path = append(path, issue.Path...)
		out[i] = Issue{Path: path, Message: issue.Message}
	}
	return out
}
