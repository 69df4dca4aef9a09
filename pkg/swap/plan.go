package swap

import (
	"github.com/Jupiter-DevRel/jupiter-cpi-swap-example/pkg/solana"
)

// Group is an instruction group. Groups execute in declaration order.
type Group uint8

const (
	GroupComputeBudget Group = iota
	GroupSetup
	GroupSwap
	GroupCleanup
	GroupOther
)

func (g Group) String() string {
	switch g {
	case GroupComputeBudget:
		return "compute_budget"
	case GroupSetup:
		return "setup"
	case GroupSwap:
		return "swap"
	case GroupCleanup:
		return "cleanup"
	case GroupOther:
		return "other"
	default:
		return "unknown"
	}
}

// Plan is the ordered set of instructions compiled into a swap transaction.
//
// Compute budget instructions bound the cost of everything after them, setup
// creates the accounts the swap uses, and cleanup closes what the swap left
// behind. Other instructions are independent and run last.
type Plan struct {
	ComputeBudget []solana.Instruction
	Setup         []solana.Instruction
	Swap          solana.Instruction
	Cleanup       []solana.Instruction
	Other         []solana.Instruction
}

// NewPlan builds a plan from a normalized route, replacing the route's swap
// instruction with swapIxn.
func NewPlan(route *Route, swapIxn solana.Instruction) *Plan {
	return &Plan{
		ComputeBudget: route.ComputeBudget,
		Setup:         route.Setup,
		Swap:          swapIxn,
		Cleanup:       route.Cleanup,
		Other:         route.Other,
	}
}

// Instructions returns every instruction in group order.
func (p *Plan) Instructions() []solana.Instruction {
	ixns := make([]solana.Instruction, 0, p.Len())
	ixns = append(ixns, p.ComputeBudget...)
	ixns = append(ixns, p.Setup...)
	ixns = append(ixns, p.Swap)
	ixns = append(ixns, p.Cleanup...)
	ixns = append(ixns, p.Other...)
	return ixns
}

// Len is the number of instructions in the plan
func (p *Plan) Len() int {
	return len(p.ComputeBudget) + len(p.Setup) + 1 + len(p.Cleanup) + len(p.Other)
}

// GroupOf returns the group of the instruction at index i of Instructions.
func (p *Plan) GroupOf(i int) (Group, bool) {
	if i < 0 {
		return 0, false
	}

	for _, g := range []struct {
		group Group
		size  int
	}{
		{GroupComputeBudget, len(p.ComputeBudget)},
		{GroupSetup, len(p.Setup)},
		{GroupSwap, 1},
		{GroupCleanup, len(p.Cleanup)},
		{GroupOther, len(p.Other)},
	} {
		if i < g.size {
			return g.group, true
		}
		i -= g.size
	}

	return 0, false
}

// withComputeBudget returns a copy of the plan with its compute budget group
// replaced.
func (p *Plan) withComputeBudget(ixns []solana.Instruction) *Plan {
	cloned := *p
	cloned.ComputeBudget = ixns
	return &cloned
}
