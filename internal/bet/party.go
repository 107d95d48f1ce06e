// Package bet implements the peer-to-peer betting negotiation engine:
// two parties build item proposals, lock them, confirm, and a random
// winner takes the loser's stake.
package bet

// Party identifies one of the two negotiating actors. Immutable once the
// session starts.
type Party struct {
	// TelegramID is the external chat identity of the actor.
	TelegramID int64
	// PlayerID is the owning game account.
	PlayerID int64
	// Name is the display name used in rendered views.
	Name string
}

// proposal is one party's mutable bet state. It is owned exclusively by
// its session and only mutated under the session mutex.
type proposal struct {
	// items holds staked instance IDs in insertion order, no duplicates.
	items []int64
	// locked, accepted and cancelled are monotonic: they only go
	// false to true. accepted implies locked.
	locked    bool
	accepted  bool
	cancelled bool
}

func (p *proposal) contains(itemID int64) bool {
	for _, id := range p.items {
		if id == itemID {
			return true
		}
	}
	return false
}

func (p *proposal) add(itemID int64) error {
	if p.locked {
		return ErrProposalLocked
	}
	if p.contains(itemID) {
		return ErrDuplicateItem
	}
	p.items = append(p.items, itemID)
	return nil
}

func (p *proposal) remove(itemID int64) error {
	if p.locked {
		return ErrProposalLocked
	}
	for i, id := range p.items {
		if id == itemID {
			p.items = append(p.items[:i], p.items[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// bettor pairs a Party with its proposal inside a session.
type bettor struct {
	party    Party
	proposal proposal
}

func (b *bettor) view() PartyView {
	items := make([]int64, len(b.proposal.items))
	copy(items, b.proposal.items)
	return PartyView{
		Party:     b.party,
		Items:     items,
		Locked:    b.proposal.locked,
		Accepted:  b.proposal.accepted,
		Cancelled: b.proposal.cancelled,
	}
}
