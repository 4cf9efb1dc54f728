package dispute

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// MinJurorStake is the smallest stake accepted at juror registration,
	// in base units of the configured dispute token.
	MinJurorStake = 1000
	// SlashBps is the share of the minimum stake slashed from jurors who
	// miss a reveal or vote against the final majority.
	SlashBps uint32 = 1000
	// InitialJurySize is the panel size of a first-round dispute.
	InitialJurySize = 5
	// AppealPanelGrowth is added to the panel size per appeal round.
	AppealPanelGrowth = 2
	// MaxAppeals caps how many times a resolution can be appealed.
	MaxAppeals uint32 = 3
	// AppealFee is paid into the fee pool when filing an appeal.
	AppealFee = 500
	// MinDisputeContribution is the funding threshold a non-creator must
	// have contributed to the project before initiating a dispute.
	MinDisputeContribution = 100

	// DefaultCommitWindowSeconds bounds the commit phase after jury selection.
	DefaultCommitWindowSeconds uint64 = 86_400
	// DefaultRevealWindowSeconds bounds the reveal phase after the commit
	// phase closes.
	DefaultRevealWindowSeconds uint64 = 86_400
	// DefaultAppealWindowSeconds bounds appeals after a tally.
	DefaultAppealWindowSeconds uint64 = 86_400
)

// Resolution is the outcome a juror votes for and a tally settles on.
type Resolution uint8

const (
	// ResolutionNone is the zero value. It is never a legal vote.
	ResolutionNone Resolution = iota
	// ResolutionRelease pays the full milestone amount to the creator.
	ResolutionRelease
	// ResolutionRefund rejects the milestone and keeps the funds escrowed
	// for the backers.
	ResolutionRefund
	// ResolutionPartial releases a basis-point fraction of the milestone
	// amount to the creator.
	ResolutionPartial
)

// Valid reports whether the resolution is a legal vote choice.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionRelease, ResolutionRefund, ResolutionPartial:
		return true
	default:
		return false
	}
}

// CommitmentHash derives the commitment for a vote choice. The preimage is the
// resolution tag byte, the big-endian release basis points for partial votes
// only, then the 32-byte salt. Reveal checks require byte-exact equality.
func CommitmentHash(res Resolution, releaseBps uint32, salt [32]byte) [32]byte {
	buf := make([]byte, 0, 1+4+32)
	buf = append(buf, byte(res))
	if res == ResolutionPartial {
		var bps [4]byte
		binary.BigEndian.PutUint32(bps[:], releaseBps)
		buf = append(buf, bps[:]...)
	}
	buf = append(buf, salt[:]...)
	var out [32]byte
	copy(out[:], crypto.Keccak256(buf))
	return out
}

// Status tracks a dispute through its lifecycle.
type Status uint8

const (
	// StatusPending marks disputes initiated but without a jury yet.
	StatusPending Status = iota
	// StatusVoting marks disputes with a selected jury in the commit or
	// reveal phase.
	StatusVoting
	// StatusResolved marks tallied disputes inside the appeal window.
	StatusResolved
	// StatusAppealed marks disputes awaiting a fresh, larger jury.
	StatusAppealed
	// StatusFinalResolved marks disputes whose outcome has been enforced
	// against the escrow.
	StatusFinalResolved
)

// Dispute is the stored record of one contested milestone. CreatedAt anchors
// the current phase window: it is reset when a jury is selected and when the
// votes are tallied.
type Dispute struct {
	ID            uint64
	ProjectID     uint64
	MilestoneID   uint64
	Initiator     [20]byte
	Status        Status
	Resolution    Resolution
	ResolutionBps uint32
	AppealCount   uint32
	CreatedAt     uint64
}

// Clone returns a copy of the dispute record.
func (d *Dispute) Clone() *Dispute {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

// PanelSize returns the jury size for the dispute's current round.
func (d *Dispute) PanelSize() int {
	if d == nil {
		return 0
	}
	return InitialJurySize + AppealPanelGrowth*int(d.AppealCount)
}

// JurorInfo is the stored record of a registered juror. Stats survive
// deregistration so a returning juror keeps their history.
type JurorInfo struct {
	Address         [20]byte
	StakedAmount    *big.Int
	Registered      bool
	ActiveDisputes  uint32
	SuccessfulVotes uint64
	MissedVotes     uint64
}

// Clone returns a deep copy of the juror record.
func (j *JurorInfo) Clone() *JurorInfo {
	if j == nil {
		return nil
	}
	clone := *j
	if j.StakedAmount != nil {
		clone.StakedAmount = new(big.Int).Set(j.StakedAmount)
	} else {
		clone.StakedAmount = big.NewInt(0)
	}
	return &clone
}

// VoteCommitment is a juror's sealed and, after reveal, opened vote for one
// dispute round.
type VoteCommitment struct {
	Hash       [32]byte
	Revealed   bool
	Kind       Resolution
	ReleaseBps uint32
}

// releaseBpsFor maps a settled resolution to the basis points passed to escrow
// enforcement.
func releaseBpsFor(res Resolution, bps uint32) uint32 {
	switch res {
	case ResolutionRelease:
		return 10_000
	case ResolutionPartial:
		return bps
	default:
		return 0
	}
}
