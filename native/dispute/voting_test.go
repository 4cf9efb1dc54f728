package dispute

import (
	"errors"
	"testing"
)

func (env *testEnv) votingDispute(t *testing.T) (uint64, [][20]byte) {
	t.Helper()
	env.registerJurors(t, 6)
	id := env.openDispute(t)
	if err := env.engine.SelectJury(id); err != nil {
		t.Fatalf("select jury: %v", err)
	}
	panel, err := env.engine.JurorAssignments(id)
	if err != nil {
		t.Fatalf("assignments: %v", err)
	}
	return id, panel
}

// advance moves the clock forward by the given number of seconds.
func (env *testEnv) advance(seconds uint64) {
	env.now += int64(seconds)
}

func TestCommitRevealRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	id, panel := env.votingDispute(t)
	juror := panel[0]
	salt := [32]byte{0x42}

	commitment := CommitmentHash(ResolutionRelease, 0, salt)
	if err := env.engine.CommitVote(id, juror, commitment); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if !env.emitter.typeSeen(EventTypeVoteCommitted) {
		t.Fatal("expected vote committed event")
	}
	env.advance(DefaultCommitWindowSeconds)
	if err := env.engine.RevealVote(id, juror, ResolutionRelease, 0, salt); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if !env.emitter.typeSeen(EventTypeVoteRevealed) {
		t.Fatal("expected vote revealed event")
	}
}

func TestCommitRejectedOutsideWindow(t *testing.T) {
	env := newTestEnv(t)
	id, panel := env.votingDispute(t)
	salt := [32]byte{1}

	env.advance(DefaultCommitWindowSeconds)
	err := env.engine.CommitVote(id, panel[0], CommitmentHash(ResolutionRefund, 0, salt))
	if !errors.Is(err, ErrCommitClosed) {
		t.Fatalf("expected ErrCommitClosed, got %v", err)
	}
}

func TestCommitRequiresPanelMembership(t *testing.T) {
	env := newTestEnv(t)
	id, _ := env.votingDispute(t)
	outsider := newTestAddress(0x77)
	err := env.engine.CommitVote(id, outsider, CommitmentHash(ResolutionRefund, 0, [32]byte{1}))
	if !errors.Is(err, ErrNotJuror) {
		t.Fatalf("expected ErrNotJuror, got %v", err)
	}
}

func TestDoubleCommitRejected(t *testing.T) {
	env := newTestEnv(t)
	id, panel := env.votingDispute(t)
	commitment := CommitmentHash(ResolutionRefund, 0, [32]byte{1})
	if err := env.engine.CommitVote(id, panel[0], commitment); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := env.engine.CommitVote(id, panel[0], commitment); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}
}

func TestRevealTimingWindows(t *testing.T) {
	env := newTestEnv(t)
	id, panel := env.votingDispute(t)
	juror := panel[0]
	salt := [32]byte{9}
	if err := env.engine.CommitVote(id, juror, CommitmentHash(ResolutionRefund, 0, salt)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	// Still inside the commit window.
	if err := env.engine.RevealVote(id, juror, ResolutionRefund, 0, salt); !errors.Is(err, ErrRevealNotOpen) {
		t.Fatalf("expected ErrRevealNotOpen, got %v", err)
	}
	env.advance(DefaultCommitWindowSeconds + DefaultRevealWindowSeconds)
	if err := env.engine.RevealVote(id, juror, ResolutionRefund, 0, salt); !errors.Is(err, ErrRevealClosed) {
		t.Fatalf("expected ErrRevealClosed, got %v", err)
	}
}

func TestRevealRejectsMismatchedPreimage(t *testing.T) {
	env := newTestEnv(t)
	id, panel := env.votingDispute(t)
	juror := panel[0]
	salt := [32]byte{9}
	if err := env.engine.CommitVote(id, juror, CommitmentHash(ResolutionRelease, 0, salt)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	env.advance(DefaultCommitWindowSeconds)

	// Different resolution.
	if err := env.engine.RevealVote(id, juror, ResolutionRefund, 0, salt); !errors.Is(err, ErrCommitmentMismatch) {
		t.Fatalf("expected ErrCommitmentMismatch for wrong resolution, got %v", err)
	}
	// Mutated salt.
	badSalt := salt
	badSalt[0] ^= 0x01
	if err := env.engine.RevealVote(id, juror, ResolutionRelease, 0, badSalt); !errors.Is(err, ErrCommitmentMismatch) {
		t.Fatalf("expected ErrCommitmentMismatch for mutated salt, got %v", err)
	}
	// The exact preimage still works afterwards.
	if err := env.engine.RevealVote(id, juror, ResolutionRelease, 0, salt); err != nil {
		t.Fatalf("reveal with exact preimage: %v", err)
	}
	if err := env.engine.RevealVote(id, juror, ResolutionRelease, 0, salt); !errors.Is(err, ErrAlreadyRevealed) {
		t.Fatalf("expected ErrAlreadyRevealed, got %v", err)
	}
}

func TestRevealRejectsIllegalResolutions(t *testing.T) {
	env := newTestEnv(t)
	id, panel := env.votingDispute(t)
	juror := panel[0]
	salt := [32]byte{3}
	if err := env.engine.CommitVote(id, juror, CommitmentHash(ResolutionNone, 0, salt)); err != nil {
		t.Fatalf("commit: %v", err)
	}
	env.advance(DefaultCommitWindowSeconds)

	if err := env.engine.RevealVote(id, juror, ResolutionNone, 0, salt); !errors.Is(err, ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution for empty resolution, got %v", err)
	}
	if err := env.engine.RevealVote(id, juror, ResolutionPartial, 10_000, salt); !errors.Is(err, ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution for full-release partial, got %v", err)
	}
	if err := env.engine.RevealVote(id, juror, ResolutionRelease, 500, salt); !errors.Is(err, ErrInvalidResolution) {
		t.Fatalf("expected ErrInvalidResolution for bps on full release, got %v", err)
	}
}

func TestRevealRequiresCommitment(t *testing.T) {
	env := newTestEnv(t)
	id, panel := env.votingDispute(t)
	env.advance(DefaultCommitWindowSeconds)
	if err := env.engine.RevealVote(id, panel[1], ResolutionRefund, 0, [32]byte{1}); !errors.Is(err, ErrNoCommitment) {
		t.Fatalf("expected ErrNoCommitment, got %v", err)
	}
}
