package domain

type InputPredicate func(input RegisteredInput) bool

// InputRegistry is a concurrent store of registered inputs keyed by
// InputKey. All mutating operations are atomic with respect to concurrent
// readers.
type InputRegistry interface {
	Put(input RegisteredInput) error
	Find(match InputPredicate) (*RegisteredInput, bool)
	FindAll(match InputPredicate) []RegisteredInput
	// RemoveRandomMatching selects uniformly at random one of the inputs
	// satisfying match and removes it.
	RemoveRandomMatching(match InputPredicate) (*RegisteredInput, bool)
	Remove(key InputKey) (*RegisteredInput, bool)
	Size() int
	SizeMatching(match InputPredicate) int
	DrainAll() []RegisteredInput
}

func MatchAll(RegisteredInput) bool { return true }

func MatchIdentity(identity string) InputPredicate {
	return func(in RegisteredInput) bool { return in.Identity == identity }
}

func MatchOutpoint(outpoint Outpoint) InputPredicate {
	return func(in RegisteredInput) bool { return in.Outpoint == outpoint }
}

func MatchOriginTxid(txid string) InputPredicate {
	return func(in RegisteredInput) bool { return in.Outpoint.Txid == txid }
}

func MatchUserHash(userHash string) InputPredicate {
	return func(in RegisteredInput) bool {
		return len(userHash) > 0 && in.UserHash == userHash
	}
}

func MatchLiquidity(liquidity bool) InputPredicate {
	return func(in RegisteredInput) bool { return in.Liquidity == liquidity }
}

func MatchQuarantined(in RegisteredInput) bool {
	return in.IsQuarantined()
}

func MatchAddress(address string) InputPredicate {
	return func(in RegisteredInput) bool { return in.Address == address }
}

func And(predicates ...InputPredicate) InputPredicate {
	return func(in RegisteredInput) bool {
		for _, p := range predicates {
			if !p(in) {
				return false
			}
		}
		return true
	}
}

func Not(p InputPredicate) InputPredicate {
	return func(in RegisteredInput) bool { return !p(in) }
}
