package types

import (
	"encoding/json"
	"time"
)

// ReviewStatusApproved is the only parsed-rule review status the publishing
// pipeline accepts. Anything else fails the publish with no side effects.
const ReviewStatusApproved = "approved"

// PolicySubject is the entity a rule version applies to, e.g. one visa type.
// Subjects are resolved or created by natural key (Code) during publishing.
type PolicySubject struct {
	ID        SubjectID `db:"id"`
	Code      string    `db:"code"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// RuleVersion is a time-bounded, versioned bundle of requirements for one
// policy subject.
//
// Lifecycle: Draft -> Published (open, EffectiveTo nil) -> Superseded
// (EffectiveTo set) -> Deleted. Rollback moves Superseded/Deleted back to
// Published(open). Among published, non-deleted versions of one subject the
// effective ranges [EffectiveFrom, EffectiveTo) never overlap and at most
// one version is open.
type RuleVersion struct {
	ID            VersionID  `db:"id"`
	SubjectID     SubjectID  `db:"subject_id"`
	EffectiveFrom time.Time  `db:"effective_from"`
	EffectiveTo   *time.Time `db:"effective_to"` // nil = open/current
	Published     bool       `db:"published"`
	LockVersion   int64      `db:"lock_version"` // monotonic, guards every mutation
	DeletedAt     *time.Time `db:"deleted_at"`
	CreatedBy     string     `db:"created_by"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	PublishedBy   *string    `db:"published_by"`
	PublishedAt   *time.Time `db:"published_at"`
}

// Deleted reports whether the version has been soft-deleted.
func (v *RuleVersion) Deleted() bool { return v.DeletedAt != nil }

// Open reports whether the version is published, not deleted and has no
// effective end, i.e. it is the candidate "current" version of its subject.
func (v *RuleVersion) Open() bool {
	return v.Published && v.DeletedAt == nil && v.EffectiveTo == nil
}

// EffectiveAt reports whether t falls inside [EffectiveFrom, EffectiveTo).
func (v *RuleVersion) EffectiveAt(t time.Time) bool {
	if t.Before(v.EffectiveFrom) {
		return false
	}
	return v.EffectiveTo == nil || t.Before(*v.EffectiveTo)
}

// Requirement is one atomic, independently evaluable eligibility condition.
// Owned exclusively by one RuleVersion and immutable once persisted; changes
// require publishing a new version.
type Requirement struct {
	ID          RequirementID `db:"id"`
	VersionID   VersionID     `db:"rule_version_id"`
	Code        string        `db:"code"` // unique within the version
	Description string        `db:"description"`
	Expression  any           `db:"-"` // decoded JSON tree, validated before persisting
	RawExpr     []byte        `db:"expression"`
	Mandatory   bool          `db:"mandatory"`
	Active      bool          `db:"active"`
	CreatedAt   time.Time     `db:"created_at"`
}

// DecodeExpression populates Expression from the stored JSON bytes.
func (r *Requirement) DecodeExpression() error {
	return json.Unmarshal(r.RawExpr, &r.Expression)
}

// ParsedRule is the external record the publishing pipeline consumes: the
// output of upstream document ingestion, carrying a reviewed logic payload.
type ParsedRule struct {
	ID            ParsedRuleID    `db:"id"`
	SubjectCode   string          `db:"subject_code"`
	SubjectName   string          `db:"subject_name"`
	ReviewStatus  string          `db:"review_status"`
	Payload       json.RawMessage `db:"payload"`
	SourceRef     string          `db:"source_ref"` // source document reference
	SourceVersion int64           `db:"source_version"`
	LockVersion   int64           `db:"lock_version"`
	ConsumedAt    *time.Time      `db:"consumed_at"`
	RuleVersionID *VersionID      `db:"rule_version_id"` // set when consumed
	CreatedAt     time.Time       `db:"created_at"`
}

// Consumed reports whether the rule has already been published.
func (p *ParsedRule) Consumed() bool { return p.ConsumedAt != nil }
