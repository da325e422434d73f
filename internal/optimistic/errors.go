package optimistic

type busyError struct{}

func (busyError) Error() string { return "optimistic: another mutation is in flight" }

func (busyError) ErrorCode() string { return "BUSY" }

// ErrBusy rejects a mutation while another one on the same store is pending.
var ErrBusy error = busyError{}
