package engine

// ValidationError rejects a submission that fails input validation.
// The order is not enqueued and the engine state is unchanged.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// ContractError reports a programmer error: an overfill, a non-positive
// quantity or price inside the matcher, or a wrong-symbol order added to a
// book. The offending operation aborts without mutating state.
type ContractError struct {
	Message string
}

func (e *ContractError) Error() string {
	return e.Message
}
