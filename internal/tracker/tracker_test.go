package tracker

import (
	"context"
	"sync"
	"testing"
)

func TestRecordRoundTrip(t *testing.T) {
	tr := New()
	defer tr.Stop()

	tr.Record("100", "cat-1")

	workspace, ok := tr.LookupWorkspace("100")
	if !ok || workspace != "cat-1" {
		t.Fatalf("LookupWorkspace(100) = %q, %v; want cat-1, true", workspace, ok)
	}
	candidate, ok := tr.LookupCandidate("cat-1")
	if !ok || candidate != "100" {
		t.Fatalf("LookupCandidate(cat-1) = %q, %v; want 100, true", candidate, ok)
	}
}

func TestRecordOverwrites(t *testing.T) {
	tr := New()
	defer tr.Stop()

	tr.Record("100", "cat-1")
	tr.Record("100", "cat-2")

	if n := tr.Len(); n != 1 {
		t.Fatalf("Len() = %d after double record; want 1", n)
	}
	workspace, _ := tr.LookupWorkspace("100")
	if workspace != "cat-2" {
		t.Fatalf("LookupWorkspace(100) = %q; want cat-2 (last write wins)", workspace)
	}
}

func TestForgetIdempotent(t *testing.T) {
	tr := New()
	defer tr.Stop()

	tr.Record("100", "cat-1")
	tr.Forget("100")
	tr.Forget("100")
	tr.Forget("never-recorded")

	if n := tr.Len(); n != 0 {
		t.Fatalf("Len() = %d; want 0", n)
	}
	if _, ok := tr.LookupWorkspace("100"); ok {
		t.Fatal("LookupWorkspace(100) still present after Forget")
	}
}

func TestLookupAbsent(t *testing.T) {
	tr := New()
	defer tr.Stop()

	if _, ok := tr.LookupWorkspace("42"); ok {
		t.Fatal("LookupWorkspace on empty tracker returned ok")
	}
	if _, ok := tr.LookupCandidate("cat-42"); ok {
		t.Fatal("LookupCandidate on empty tracker returned ok")
	}
}

func TestReconcile(t *testing.T) {
	tr := New()
	defer tr.Stop()

	categories := []CategorySnapshot{
		{ID: "reserved-1", Name: "onboarding"},
		{ID: "reserved-2", Name: "staff"},
		{ID: "cat-a", Name: "AlphaBot"},
		{ID: "cat-b", Name: "BetaBot"},
		{ID: "cat-c", Name: "GoneBot"},
	}
	members := []MemberSnapshot{
		{ID: "1", Username: "AlphaBot", IsBot: true},
		{ID: "2", Username: "BetaBot", IsBot: true},
		{ID: "3", Username: "AlphaBot", IsBot: false}, // human sharing the name
	}

	matched := tr.Reconcile(context.Background(), categories, members, []string{"reserved-1", "reserved-2"})
	if matched != 2 {
		t.Fatalf("Reconcile matched %d; want 2", matched)
	}

	if workspace, ok := tr.LookupWorkspace("1"); !ok || workspace != "cat-a" {
		t.Fatalf("AlphaBot mapping = %q, %v; want cat-a, true", workspace, ok)
	}
	if workspace, ok := tr.LookupWorkspace("2"); !ok || workspace != "cat-b" {
		t.Fatalf("BetaBot mapping = %q, %v; want cat-b, true", workspace, ok)
	}
	// Reserved categories and unmatched ones must not appear.
	if _, ok := tr.LookupCandidate("reserved-1"); ok {
		t.Fatal("reserved category was reconciled")
	}
	if _, ok := tr.LookupCandidate("cat-c"); ok {
		t.Fatal("category with no present member was reconciled")
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := New()
	defer tr.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.Record("same", "cat")
			tr.LookupWorkspace("same")
			tr.Forget("same")
		}()
	}
	wg.Wait()

	if n := tr.Len(); n != 0 {
		t.Fatalf("Len() = %d after concurrent record/forget; want 0", n)
	}
}
