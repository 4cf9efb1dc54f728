package escrow

import (
	"errors"
	"math/big"
	"testing"
)

func TestBatchCreateMilestonesPartialFailure(t *testing.T) {
	env := newTestEnv(t)
	env.initProject(t, 1, 0)
	env.deposit(t, 1, 1000)

	drafts := []MilestoneDraft{
		{DescriptionHash: [32]byte{1}, Amount: big.NewInt(300)},
		{DescriptionHash: [32]byte{2}, Amount: big.NewInt(0)},   // invalid amount
		{DescriptionHash: [32]byte{3}, Amount: big.NewInt(900)}, // exceeds headroom
		{DescriptionHash: [32]byte{4}, Amount: big.NewInt(400)},
	}
	result, err := env.engine.BatchCreateMilestones(1, env.creator, drafts)
	if err != nil {
		t.Fatalf("batch create: %v", err)
	}
	if result.Total != 4 || result.Successful != 2 || result.Failed != 2 {
		t.Fatalf("result = %+v, want 4/2/2", result)
	}
	total, err := env.engine.TotalMilestoneAmount(1)
	if err != nil {
		t.Fatalf("total: %v", err)
	}
	if total.Cmp(big.NewInt(700)) != 0 {
		t.Fatalf("milestone total = %s, want 700", total)
	}
	if !env.emitter.typeSeen(EventTypeBatchItemFailed) {
		t.Fatal("expected batch item failed event")
	}
	if !env.emitter.typeSeen(EventTypeBatchCompleted) {
		t.Fatal("expected batch completed event")
	}
}

func TestBatchCreateMilestonesCapacity(t *testing.T) {
	env := newTestEnv(t)
	env.initProject(t, 1, 0)

	if _, err := env.engine.BatchCreateMilestones(1, env.creator, nil); !errors.Is(err, ErrBatchEmpty) {
		t.Fatalf("expected ErrBatchEmpty, got %v", err)
	}
	oversized := make([]MilestoneDraft, MaxBatchSize+1)
	for i := range oversized {
		oversized[i] = MilestoneDraft{Amount: big.NewInt(1)}
	}
	if _, err := env.engine.BatchCreateMilestones(1, env.creator, oversized); !errors.Is(err, ErrBatchTooLarge) {
		t.Fatalf("expected ErrBatchTooLarge, got %v", err)
	}
	if _, err := env.engine.BatchCreateMilestones(1, env.backer, []MilestoneDraft{{Amount: big.NewInt(1)}}); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestBatchVoteMilestonesSkipsFailingItems(t *testing.T) {
	env := newTestEnv(t)
	env.initProject(t, 1, 0)
	env.deposit(t, 1, 1000)
	first := env.submittedMilestone(t, 1, 300)
	second := env.submittedMilestone(t, 1, 300)

	// Pre-existing vote makes the first item a duplicate inside the batch.
	if err := env.engine.VoteMilestone(1, first, env.validators[0], true); err != nil {
		t.Fatalf("seed vote: %v", err)
	}
	votes := []BatchVote{
		{MilestoneID: first, Approve: true},  // duplicate
		{MilestoneID: second, Approve: true}, // counts
		{MilestoneID: 99, Approve: true},     // unknown
	}
	result, err := env.engine.BatchVoteMilestones(1, env.validators[0], votes)
	if err != nil {
		t.Fatalf("batch vote: %v", err)
	}
	if result.Total != 3 || result.Successful != 1 || result.Failed != 2 {
		t.Fatalf("result = %+v, want 3/1/2", result)
	}
	m, err := env.engine.GetMilestone(1, second)
	if err != nil {
		t.Fatalf("get milestone: %v", err)
	}
	if m.ApprovalCount != 1 {
		t.Fatalf("approval count = %d, want 1", m.ApprovalCount)
	}
}

func TestBatchVoteMilestonesRejectsOutsiders(t *testing.T) {
	env := newTestEnv(t)
	env.initProject(t, 1, 0)
	env.deposit(t, 1, 1000)
	id := env.submittedMilestone(t, 1, 300)

	votes := []BatchVote{{MilestoneID: id, Approve: true}}
	if _, err := env.engine.BatchVoteMilestones(1, env.backer, votes); !errors.Is(err, ErrNotValidator) {
		t.Fatalf("expected ErrNotValidator, got %v", err)
	}
}
