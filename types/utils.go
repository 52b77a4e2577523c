package types

import "slices"

// transitions enumerates the valid role transitions per spec.md §4.3.5.
var transitions = map[RoleKind][]RoleKind{
	RoleStart:     {RolePassive, RoleRemote, RoleFollower},
	RolePassive:   {RoleStart},
	RoleRemote:    {RoleStart},
	RoleFollower:  {RoleCandidate, RoleStart},
	RoleCandidate: {RoleFollower, RoleCandidate, RoleLeader, RoleStart},
	RoleLeader:    {RoleFollower, RoleStart},
}

// CanTransitionTo reports whether a transition from rk to target is valid.
func (rk RoleKind) CanTransitionTo(target RoleKind) bool {
	if rk == target {
		return true // transition(role_type) to the current role is a no-op
	}
	validTargets, exists := transitions[rk]
	if !exists {
		return false
	}
	return slices.Contains(validTargets, target)
}

// Majority returns the smallest count that constitutes a majority of n voters.
func Majority(n int) int {
	return n/2 + 1
}

// MaxIndex returns the larger of two indices.
func MaxIndex(a, b Index) Index {
	if a > b {
		return a
	}
	return b
}

// MinIndex returns the smaller of two indices.
func MinIndex(a, b Index) Index {
	if a < b {
		return a
	}
	return b
}
