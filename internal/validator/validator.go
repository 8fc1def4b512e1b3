package validator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/thoreinstein/chatbackup/internal/backup"
	"github.com/thoreinstein/chatbackup/internal/chat"
)

// Severity represents the impact of an issue.
type Severity int

const (
	// SeverityError marks data that is unreadable or breaks a store rule.
	SeverityError Severity = iota
	// SeverityWarning marks a state the next write corrects.
	SeverityWarning
	// SeverityInfo is an informational note.
	SeverityInfo
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON reports.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Issue is a single problem found in the store.
type Issue struct {
	Severity Severity `json:"severity"`

	// Key is the chat key or storage key the issue belongs to.
	Key string `json:"key"`

	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

// Error implements the error interface.
func (i Issue) Error() string {
	var sb strings.Builder
	sb.WriteString(i.Severity.String())
	sb.WriteString(": ")
	if i.Key != "" {
		sb.WriteString(i.Key)
		sb.WriteString(": ")
	}
	sb.WriteString(i.Message)
	return sb.String()
}

// Result aggregates issues along with what was examined.
type Result struct {
	Backups int     `json:"backups"`
	Chats   int     `json:"chats"`
	Issues  []Issue `json:"issues"`
}

// Add records an issue.
func (r *Result) Add(sev Severity, key, message string, context map[string]string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Key: key, Message: message, Context: context})
}

// HasErrors returns true if any issue has SeverityError.
func (r *Result) HasErrors() bool {
	return len(r.bySeverity(SeverityError)) > 0
}

// HasWarnings returns true if any issue has SeverityWarning.
func (r *Result) HasWarnings() bool {
	return len(r.bySeverity(SeverityWarning)) > 0
}

// Errors returns the issues with SeverityError.
func (r *Result) Errors() []Issue {
	return r.bySeverity(SeverityError)
}

// Warnings returns the issues with SeverityWarning.
func (r *Result) Warnings() []Issue {
	return r.bySeverity(SeverityWarning)
}

func (r *Result) bySeverity(s Severity) []Issue {
	if r == nil {
		return nil
	}
	var out []Issue
	for _, i := range r.Issues {
		if i.Severity == s {
			out = append(out, i)
		}
	}
	return out
}

// Backups checks a listing of the whole store. max and mode are the
// store's retention count and partitioning.
func Backups(listing *backup.Listing, max int, mode backup.Partitioning) *Result {
	result := &Result{Backups: len(listing.Records)}

	for _, inv := range listing.Invalid {
		ctx := map[string]string{"index": strconv.Itoa(inv.Index)}
		if inv.Index < 0 {
			ctx = map[string]string{"index": "all"}
		}
		result.Add(SeverityError, inv.Key, inv.Err.Error(), ctx)
	}

	byChat := map[string][]*chat.Record{}
	var order []string
	for _, rec := range listing.Records {
		key := rec.Identity.Key()
		if _, seen := byChat[key]; !seen {
			order = append(order, key)
		}
		byChat[key] = append(byChat[key], rec)
	}
	result.Chats = len(order)

	if mode == backup.Global {
		if n := len(listing.Records); n > max {
			result.Add(SeverityWarning, "", fmt.Sprintf("%d backups stored, limit is %d; the oldest are evicted on the next backup", n, max), nil)
		}
	}

	for _, key := range order {
		records := byChat[key]
		if mode != backup.Global && len(records) > max {
			result.Add(SeverityWarning, key,
				fmt.Sprintf("%d backups stored, limit is %d; the oldest are evicted on the next backup", len(records), max), nil)
		}

		seen := map[int]int64{}
		for _, rec := range records {
			if err := rec.Validate(); err != nil {
				result.Add(SeverityError, key, err.Error(), map[string]string{"timestamp": strconv.FormatInt(rec.Timestamp, 10)})
			}
			if prev, dup := seen[rec.LastMessageIndex]; dup {
				result.Add(SeverityError, key, "two backups end at the same message", map[string]string{
					"last_message_index": strconv.Itoa(rec.LastMessageIndex),
					"timestamps":         fmt.Sprintf("%d,%d", prev, rec.Timestamp),
				})
				continue
			}
			seen[rec.LastMessageIndex] = rec.Timestamp
		}
	}

	return result
}
