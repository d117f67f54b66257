package publish

import (
	"context"
	"log/slog"

	"github.com/pathwaylegal/rulekeeper/internal/types"
)

// Event is a best-effort side effect of a successful publish. Events are
// produced after the transaction commits and handed to a Dispatcher;
// delivery failures are logged and swallowed, never rolling anything back.
type Event interface {
	Kind() string
}

// StakeholderNotice asks the notification collaborator to inform affected
// stakeholders that a subject's rules changed.
type StakeholderNotice struct {
	SubjectCode  string
	VersionID    types.VersionID
	ParsedRuleID types.ParsedRuleID
}

func (StakeholderNotice) Kind() string { return "stakeholder-notice" }

// IndexRefresh asks the search collaborator to re-index the source
// document version behind the published rule.
type IndexRefresh struct {
	SourceRef     string
	SourceVersion int64
}

func (IndexRefresh) Kind() string { return "index-refresh" }

// Dispatcher delivers publish events to external collaborators.
type Dispatcher interface {
	Dispatch(ctx context.Context, event Event) error
}

// LogDispatcher records events in the log instead of delivering them.
// Default when no external dispatcher is wired.
type LogDispatcher struct {
	Logger *slog.Logger
}

func (d *LogDispatcher) Dispatch(_ context.Context, event Event) error {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("publish event", "kind", event.Kind(), "event", event)
	return nil
}
