package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/chordseqapp/chordseq-server/internal/domain"
	"github.com/chordseqapp/chordseq-server/internal/id"
)

// grantRead inserts an active read policy on a tag for the grantee.
func grantRead(t *testing.T, s *Store, tag *domain.Tag, granteeID string, expiresAt *time.Time) *domain.Policy {
	t.Helper()
	p := &domain.Policy{
		ResourceType: domain.ResourceTag,
		ResourceID:   tag.ID,
		GranteeID:    granteeID,
		Action:       domain.ActionRead,
		ExpiresAt:    expiresAt,
		CreatorID:    tag.OwnerID,
	}
	p.ID = id.MustGenerate("policy")
	p.InitTimestamps()
	if err := s.CreatePolicy(context.Background(), p); err != nil {
		t.Fatalf("create policy: %v", err)
	}
	return p
}

func chartIDs(charts []*domain.Chart) []string {
	ids := make([]string, len(charts))
	for i, c := range charts {
		ids[i] = c.ID
	}
	return ids
}

func TestQueryChartsVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	stranger := makeTestUser(t, s, "stranger@example.com")

	private := makeTestChart(t, s, owner, domain.ChartKindChord)
	public := makeTestChart(t, s, owner, domain.ChartKindProgression)
	public.Scope = domain.ScopePublic
	public.Touch()
	if err := s.UpdateChart(ctx, public); err != nil {
		t.Fatalf("update chart: %v", err)
	}

	// Owner sees both.
	got, err := s.QueryCharts(ctx, owner.ID, ChartQuery{})
	if err != nil {
		t.Fatalf("query as owner: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("owner: got %d charts, want 2", len(got))
	}

	// Stranger sees only the public one.
	got, err = s.QueryCharts(ctx, stranger.ID, ChartQuery{})
	if err != nil {
		t.Fatalf("query as stranger: %v", err)
	}
	if len(got) != 1 || got[0].ID != public.ID {
		t.Errorf("stranger: got %v, want only public chart", chartIDs(got))
	}

	// Exact ID of an invisible chart: empty, indistinguishable from missing.
	got, err = s.QueryCharts(ctx, stranger.ID, ChartQuery{ID: private.ID})
	if err != nil {
		t.Fatalf("query by id: %v", err)
	}
	if len(got) != 0 {
		t.Error("invisible chart should resolve to empty result")
	}
}

func TestQueryChartsPolicyVisibility(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	grantee := makeTestUser(t, s, "grantee@example.com")

	tag := makeTestTag(t, s, owner, "shared", domain.TagKindDescriptor)
	chart := makeTestChart(t, s, owner, domain.ChartKindProgression)
	if err := s.AddChartTag(ctx, chart.ID, tag.ID); err != nil {
		t.Fatalf("tag chart: %v", err)
	}

	// No policy yet: invisible, even when filtering by the tag.
	got, err := s.QueryCharts(ctx, grantee.ID, ChartQuery{TagIDs: []string{tag.ID}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Fatal("chart should be invisible without a policy")
	}

	grantRead(t, s, tag, grantee.ID, nil)

	got, err = s.QueryCharts(ctx, grantee.ID, ChartQuery{TagIDs: []string{tag.ID}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != chart.ID {
		t.Errorf("got %v, want exactly the shared chart", chartIDs(got))
	}
}

func TestQueryChartsExpiredPolicyInvisible(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	grantee := makeTestUser(t, s, "grantee@example.com")

	tag := makeTestTag(t, s, owner, "shared", domain.TagKindDescriptor)
	chart := makeTestChart(t, s, owner, domain.ChartKindChord)
	if err := s.AddChartTag(ctx, chart.ID, tag.ID); err != nil {
		t.Fatalf("tag chart: %v", err)
	}

	past := time.Now().Add(-time.Hour)
	grantRead(t, s, tag, grantee.ID, &past)

	got, err := s.QueryCharts(ctx, grantee.ID, ChartQuery{})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Error("expired policy must be treated as absent")
	}
}

func TestQueryChartsKindFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	chord := makeTestChart(t, s, owner, domain.ChartKindChord)
	makeTestChart(t, s, owner, domain.ChartKindProgression)

	got, err := s.QueryCharts(ctx, owner.ID, ChartQuery{Kinds: []domain.ChartKind{domain.ChartKindChord}})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].ID != chord.ID {
		t.Errorf("got %v, want only the chord chart", chartIDs(got))
	}
}

// Concatenating pages must equal the unpaginated result: no gaps, no dupes.
func TestQueryChartsCursorPagination(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	for range 5 {
		makeTestChart(t, s, owner, domain.ChartKindChord)
	}

	all, err := s.QueryCharts(ctx, owner.ID, ChartQuery{Ascending: true})
	if err != nil {
		t.Fatalf("query all: %v", err)
	}
	if len(all) != 5 {
		t.Fatalf("got %d charts, want 5", len(all))
	}

	var paged []*domain.Chart
	after := ""
	for {
		page, err := s.QueryCharts(ctx, owner.ID, ChartQuery{Ascending: true, Limit: 2, After: after})
		if err != nil {
			t.Fatalf("query page: %v", err)
		}
		if len(page) == 0 {
			break
		}
		paged = append(paged, page...)
		after = page[len(page)-1].ID
	}

	if len(paged) != len(all) {
		t.Fatalf("paged %d charts, want %d", len(paged), len(all))
	}
	for i := range all {
		if paged[i].ID != all[i].ID {
			t.Errorf("page order mismatch at %d: got %s, want %s", i, paged[i].ID, all[i].ID)
		}
	}
}

func TestQueryChartsReactionOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	fan1 := makeTestUser(t, s, "fan1@example.com")
	fan2 := makeTestUser(t, s, "fan2@example.com")

	quiet := makeTestChart(t, s, owner, domain.ChartKindChord)
	popular := makeTestChart(t, s, owner, domain.ChartKindChord)

	for _, fan := range []*domain.User{fan1, fan2} {
		r := &domain.Reaction{ChartID: popular.ID, UserID: fan.ID, Kind: domain.ReactionStar, CreatedAt: time.Now()}
		if err := s.SetReaction(ctx, r); err != nil {
			t.Fatalf("set reaction: %v", err)
		}
	}

	got, err := s.QueryCharts(ctx, owner.ID, ChartQuery{Order: OrderReactions})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].ID != popular.ID || got[1].ID != quiet.ID {
		t.Errorf("got %v, want popular first", chartIDs(got))
	}
}

func TestQueryChartsPositionOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	list := makeTestTag(t, s, owner, "setlist", domain.TagKindList)

	first := makeTestChart(t, s, owner, domain.ChartKindProgression)
	second := makeTestChart(t, s, owner, domain.ChartKindProgression)

	// Attach in order: positions follow attachment order.
	if err := s.AddChartTag(ctx, first.ID, list.ID); err != nil {
		t.Fatalf("tag chart: %v", err)
	}
	if err := s.AddChartTag(ctx, second.ID, list.ID); err != nil {
		t.Fatalf("tag chart: %v", err)
	}

	got, err := s.QueryCharts(ctx, owner.ID, ChartQuery{
		TagIDs: []string{list.ID}, Order: OrderPosition, Ascending: true,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 || got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("got %v, want attachment order", chartIDs(got))
	}

	// Position with two tags silently degrades to creation time; the query
	// must still succeed.
	other := makeTestTag(t, s, owner, "other", domain.TagKindList)
	if _, err := s.QueryCharts(ctx, owner.ID, ChartQuery{
		TagIDs: []string{list.ID, other.ID}, Order: OrderPosition,
	}); err != nil {
		t.Fatalf("fallback query: %v", err)
	}
}

func TestQueryChartsRandom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	for range 10 {
		makeTestChart(t, s, owner, domain.ChartKindChord)
	}

	got, err := s.QueryCharts(ctx, owner.ID, ChartQuery{Order: OrderRandom, Limit: 4})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 4 {
		t.Errorf("got %d charts, want 4", len(got))
	}
	seen := map[string]bool{}
	for _, c := range got {
		if seen[c.ID] {
			t.Errorf("duplicate chart %s in random sample", c.ID)
		}
		seen[c.ID] = true
	}
}

func TestQueryChartsLimitClamp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := makeTestUser(t, s, "owner@example.com")
	makeTestChart(t, s, owner, domain.ChartKindChord)

	// Oversized limits must not error; they are clamped server-side.
	if _, err := s.QueryCharts(ctx, owner.ID, ChartQuery{Limit: 10_000}); err != nil {
		t.Fatalf("query with oversized limit: %v", err)
	}
}

func TestReactionToggleStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	owner := makeTestUser(t, s, "owner@example.com")
	chart := makeTestChart(t, s, owner, domain.ChartKindChord)

	r := &domain.Reaction{ChartID: chart.ID, UserID: owner.ID, Kind: domain.ReactionStar, CreatedAt: time.Now()}
	if err := s.SetReaction(ctx, r); err != nil {
		t.Fatalf("set reaction: %v", err)
	}

	got, err := s.GetReaction(ctx, chart.ID, owner.ID)
	if err != nil {
		t.Fatalf("get reaction: %v", err)
	}
	if got == nil || got.Kind != domain.ReactionStar {
		t.Fatalf("got %v, want star reaction", got)
	}

	// Replacing with a different kind updates in place.
	r.Kind = domain.ReactionSmile
	if err := s.SetReaction(ctx, r); err != nil {
		t.Fatalf("replace reaction: %v", err)
	}
	got, err = s.GetReaction(ctx, chart.ID, owner.ID)
	if err != nil {
		t.Fatalf("get reaction: %v", err)
	}
	if got.Kind != domain.ReactionSmile {
		t.Errorf("got %s, want smile", got.Kind)
	}

	counts, err := s.GetReactionCountsByChartIDs(ctx, []string{chart.ID})
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[chart.ID] != 1 {
		t.Errorf("count: got %d, want 1", counts[chart.ID])
	}

	if err := s.DeleteReaction(ctx, chart.ID, owner.ID); err != nil {
		t.Fatalf("delete reaction: %v", err)
	}
	got, err = s.GetReaction(ctx, chart.ID, owner.ID)
	if err != nil {
		t.Fatalf("get reaction: %v", err)
	}
	if got != nil {
		t.Error("reaction should be gone")
	}
}
