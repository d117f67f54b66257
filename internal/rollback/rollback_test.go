package rollback

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/pathwaylegal/rulekeeper/internal/core/db"
	"github.com/pathwaylegal/rulekeeper/internal/publish"
	"github.com/pathwaylegal/rulekeeper/internal/store"
	"github.com/pathwaylegal/rulekeeper/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()

	conn, err := db.Open("sqlite://" + filepath.Join(t.TempDir(), "rollback_test.db"))
	if err != nil {
		t.Fatalf("db.Open() error = %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.MigrateUp(conn); err != nil {
		t.Fatalf("db.MigrateUp() error = %v", err)
	}

	s, err := store.New(conn)
	if err != nil {
		t.Fatalf("store.New() error = %v", err)
	}
	return s
}

// publishVersion runs the whole pipeline for a fresh approved source record
// and returns the produced version id.
func publishVersion(t *testing.T, s *store.Store, marker int) types.VersionID {
	t.Helper()

	pipeline, err := publish.New(s)
	if err != nil {
		t.Fatalf("publish.New() error = %v", err)
	}

	rule := &types.ParsedRule{
		SubjectCode:  "permanent-residency",
		SubjectName:  "Permanent Residency",
		ReviewStatus: types.ReviewStatusApproved,
		Payload:      []byte(fmt.Sprintf(`{"expression": {"==": [%d, %d]}}`, marker, marker)),
		SourceRef:    fmt.Sprintf("doc-%d", marker),
	}
	if err := s.InsertParsedRule(context.Background(), rule); err != nil {
		t.Fatalf("InsertParsedRule() error = %v", err)
	}

	result, err := pipeline.PublishApprovedRule(context.Background(), rule.ID, "alice")
	if err != nil {
		t.Fatalf("PublishApprovedRule() error = %v", err)
	}
	return result.RuleVersionID
}

func TestRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	firstID := publishVersion(t, s, 1)
	secondID := publishVersion(t, s, 2)

	controller, err := New(s)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := controller.Rollback(ctx, secondID, firstID, "bob")
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if !result.CurrentVersionClosed {
		t.Error("CurrentVersionClosed = false, want true")
	}
	if !result.PreviousVersionReopened {
		t.Error("PreviousVersionReopened = false, want true")
	}

	second, err := s.GetByID(ctx, secondID)
	if err != nil {
		t.Fatalf("GetByID(second) error = %v", err)
	}
	if second.EffectiveTo == nil {
		t.Error("rolled-back current version still open")
	}

	first, err := s.GetByID(ctx, firstID)
	if err != nil {
		t.Fatalf("GetByID(first) error = %v", err)
	}
	if !first.Open() {
		t.Errorf("restored target = %+v, want open published version", first)
	}
	if first.PublishedBy == nil || *first.PublishedBy != "bob" {
		t.Errorf("PublishedBy = %v, want bob", first.PublishedBy)
	}
	// Forward-looking: the restored range starts now, one tick after the
	// closed one ends.
	if !second.EffectiveTo.Equal(first.EffectiveFrom.Add(-types.Tick)) {
		t.Errorf("boundary mismatch: closed at %v, reopened from %v", second.EffectiveTo, first.EffectiveFrom)
	}

	subject, err := s.GetSubjectByCode(ctx, "permanent-residency")
	if err != nil {
		t.Fatalf("GetSubjectByCode() error = %v", err)
	}
	current, err := s.GetCurrent(ctx, subject.ID)
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}
	if current.ID != firstID {
		t.Errorf("GetCurrent() = %s, want the restored version %s", current.ID, firstID)
	}
}

func TestRollback_RestoresDeletedTarget(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	firstID := publishVersion(t, s, 1)
	secondID := publishVersion(t, s, 2)

	first, err := s.GetByID(ctx, firstID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if err := s.SoftDelete(ctx, firstID, first.LockVersion); err != nil {
		t.Fatalf("SoftDelete() error = %v", err)
	}

	controller, err := New(s)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	result, err := controller.Rollback(ctx, secondID, firstID, "bob")
	if err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if !result.PreviousVersionReopened {
		t.Error("PreviousVersionReopened = false, want true for a deleted target")
	}

	restored, err := s.GetByID(ctx, firstID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if restored.Deleted() || !restored.Open() {
		t.Errorf("restored target = %+v, want undeleted open version", restored)
	}
}

func TestRollback_Preconditions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	firstID := publishVersion(t, s, 1)
	secondID := publishVersion(t, s, 2)

	controller, err := New(s)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	t.Run("unknown current", func(t *testing.T) {
		_, err := controller.Rollback(ctx, types.NewVersionID(), firstID, "bob")
		if !errors.Is(err, types.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("unknown target", func(t *testing.T) {
		_, err := controller.Rollback(ctx, secondID, types.NewVersionID(), "bob")
		if !errors.Is(err, types.ErrNotFound) {
			t.Errorf("error = %v, want ErrNotFound", err)
		}
	})

	t.Run("target not earlier", func(t *testing.T) {
		_, err := controller.Rollback(ctx, firstID, secondID, "bob")
		if !errors.Is(err, types.ErrRollbackNotEarlier) {
			t.Errorf("error = %v, want ErrRollbackNotEarlier", err)
		}
	})

	t.Run("same version", func(t *testing.T) {
		_, err := controller.Rollback(ctx, secondID, secondID, "bob")
		if !errors.Is(err, types.ErrRollbackNotEarlier) {
			t.Errorf("error = %v, want ErrRollbackNotEarlier", err)
		}
	})

	// None of the failed attempts above may have mutated anything: the
	// second version is still the open current one.
	subject, err := s.GetSubjectByCode(ctx, "permanent-residency")
	if err != nil {
		t.Fatalf("GetSubjectByCode() error = %v", err)
	}
	current, err := s.GetCurrent(ctx, subject.ID)
	if err != nil {
		t.Fatalf("GetCurrent() error = %v", err)
	}
	if current.ID != secondID {
		t.Errorf("GetCurrent() = %s, want untouched %s", current.ID, secondID)
	}
}

func TestRollback_SubjectMismatch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	versionID := publishVersion(t, s, 1)

	// A version under a different subject.
	other, err := s.Create(ctx, types.NewSubjectID(), s.Now(), nil, "alice")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	controller, err := New(s)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = controller.Rollback(ctx, versionID, other.ID, "bob")
	if !errors.Is(err, types.ErrSubjectMismatch) {
		t.Errorf("Rollback() error = %v, want ErrSubjectMismatch", err)
	}
}

// assertTimeline checks the versioning invariant: published non-deleted
// versions ordered by effective_from never overlap and at most one is open.
func assertTimeline(t *testing.T, versions []types.RuleVersion) bool {
	t.Helper()

	var published []types.RuleVersion
	for _, v := range versions {
		if v.Published && !v.Deleted() {
			published = append(published, v)
		}
	}
	sort.Slice(published, func(i, j int) bool {
		return published[i].EffectiveFrom.Before(published[j].EffectiveFrom)
	})

	open := 0
	for i, v := range published {
		if v.EffectiveTo == nil {
			open++
			continue
		}
		if i+1 < len(published) && v.EffectiveTo.After(published[i+1].EffectiveFrom) {
			t.Logf("overlap: %s ends %v after %s starts %v",
				v.ID, v.EffectiveTo, published[i+1].ID, published[i+1].EffectiveFrom)
			return false
		}
	}
	if open > 1 {
		t.Logf("%d open versions, want at most one", open)
		return false
	}
	// An open version, if any, must be the last one.
	for i, v := range published {
		if v.EffectiveTo == nil && i != len(published)-1 {
			t.Logf("open version %s is not the latest", v.ID)
			return false
		}
	}
	return true
}

func TestTimelineInvariant_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 15
	properties := gopter.NewProperties(parameters)

	properties.Property("publish and rollback sequences never overlap the timeline", prop.ForAll(
		func(publishes int, rollbackTo int) bool {
			s := newTestStore(t)
			ctx := context.Background()

			ids := make([]types.VersionID, 0, publishes)
			for i := 0; i < publishes; i++ {
				ids = append(ids, publishVersion(t, s, i+1))
			}

			if rollbackTo < publishes-1 {
				controller, err := New(s)
				if err != nil {
					t.Fatalf("New() error = %v", err)
				}
				if _, err := controller.Rollback(ctx, ids[publishes-1], ids[rollbackTo], "bob"); err != nil {
					t.Logf("Rollback() error = %v", err)
					return false
				}
			}

			subject, err := s.GetSubjectByCode(ctx, "permanent-residency")
			if err != nil {
				t.Fatalf("GetSubjectByCode() error = %v", err)
			}
			versions, err := s.ListBySubject(ctx, subject.ID)
			if err != nil {
				t.Fatalf("ListBySubject() error = %v", err)
			}
			return assertTimeline(t, versions)
		},
		gen.IntRange(1, 4),
		gen.IntRange(0, 3),
	))

	properties.TestingRun(t)
}
