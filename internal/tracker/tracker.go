// Package tracker maintains the in-memory candidate→workspace mapping for
// bot reviews. All access is serialized through a single owning goroutine so
// interleaved event handlers can never race a read-modify-write on the same
// candidate.
package tracker

import "context"

// Entry is one candidate→workspace pair.
type Entry struct {
	CandidateID string
	WorkspaceID string
}

// CategorySnapshot is a platform category considered during reconciliation.
type CategorySnapshot struct {
	ID   string
	Name string
}

// MemberSnapshot is a present review-guild member considered during
// reconciliation.
type MemberSnapshot struct {
	ID       string
	Username string
	IsBot    bool
}

type request struct {
	apply func(state map[string]string)
	done  chan struct{}
}

// Tracker is the single-owner actor. The map is not persisted; Reconcile
// rebuilds it from platform state after a restart.
type Tracker struct {
	requests chan request
	stop     chan struct{}
}

// New starts the tracker's owning goroutine.
func New() *Tracker {
	t := &Tracker{
		requests: make(chan request),
		stop:     make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *Tracker) run() {
	state := make(map[string]string)
	for {
		select {
		case req := <-t.requests:
			req.apply(state)
			close(req.done)
		case <-t.stop:
			return
		}
	}
}

// Stop terminates the owning goroutine. Calls after Stop block forever, so
// only the process shutdown path may use it.
func (t *Tracker) Stop() {
	close(t.stop)
}

func (t *Tracker) do(apply func(state map[string]string)) {
	req := request{apply: apply, done: make(chan struct{})}
	t.requests <- req
	<-req.done
}

// Record inserts or overwrites the mapping for a candidate. Overwriting is a
// recovery case (redelivered join event), not an error.
func (t *Tracker) Record(candidateID, workspaceID string) {
	t.do(func(state map[string]string) {
		state[candidateID] = workspaceID
	})
}

// LookupWorkspace returns the workspace mapped to a candidate. Absence means
// "no active workspace", never an error.
func (t *Tracker) LookupWorkspace(candidateID string) (string, bool) {
	var id string
	var ok bool
	t.do(func(state map[string]string) {
		id, ok = state[candidateID]
	})
	return id, ok
}

// LookupCandidate scans for the candidate owning a workspace. Workspace
// counts stay small, so the linear scan is fine.
func (t *Tracker) LookupCandidate(workspaceID string) (string, bool) {
	var id string
	var ok bool
	t.do(func(state map[string]string) {
		for candidate, workspace := range state {
			if workspace == workspaceID {
				id, ok = candidate, true
				return
			}
		}
	})
	return id, ok
}

// Forget removes the mapping for a candidate. Idempotent.
func (t *Tracker) Forget(candidateID string) {
	t.do(func(state map[string]string) {
		delete(state, candidateID)
	})
}

// Len returns the number of live mappings.
func (t *Tracker) Len() int {
	var n int
	t.do(func(state map[string]string) {
		n = len(state)
	})
	return n
}

// Snapshot returns a copy of all live mappings.
func (t *Tracker) Snapshot() []Entry {
	var entries []Entry
	t.do(func(state map[string]string) {
		for candidate, workspace := range state {
			entries = append(entries, Entry{CandidateID: candidate, WorkspaceID: workspace})
		}
	})
	return entries
}

// Reconcile rebuilds the mapping from platform state after a restart.
// Reserved categories never belong to a candidate and are skipped; every
// other category is matched by name against the present bot members
// (first match wins). Categories with no matching member are skipped.
func (t *Tracker) Reconcile(ctx context.Context, categories []CategorySnapshot, members []MemberSnapshot, reservedIDs []string) int {
	reserved := make(map[string]struct{}, len(reservedIDs))
	for _, id := range reservedIDs {
		reserved[id] = struct{}{}
	}

	matched := 0
	for _, category := range categories {
		if ctx.Err() != nil {
			break
		}
		if _, skip := reserved[category.ID]; skip {
			continue
		}
		for _, member := range members {
			if !member.IsBot || member.Username != category.Name {
				continue
			}
			t.Record(member.ID, category.ID)
			matched++
			break
		}
	}
	return matched
}
