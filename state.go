package redistx

// txState tracks which phase of the MULTI/EXEC protocol a transaction is
// in. The flags are independent: a transaction can be both in CAS mode and
// discarded while a retry is being set up.
type txState struct {
	cas         bool
	watching    bool
	initialized bool
	discarded   bool
	insideBlock bool
}

func (s *txState) reset() {
	*s = txState{}
}

// watchAllowed reports whether WATCH commands may still be issued, which is
// the case only while MULTI has not been sent to the server yet.
func (s *txState) watchAllowed() bool {
	return !s.initialized || s.cas
}

// executing reports whether a user-supplied transaction block is currently
// running.
func (s *txState) executing() bool {
	return s.insideBlock
}
