package domain

// SessionIDSeparator joins the two participant ids. Participant ids are
// opaque account ids and never contain it.
const SessionIDSeparator = "-"

// SessionID derives the shared conversation id for two participants.
// The pair is sorted so both sides compute the same id: greater id first.
func SessionID(a, b string) string {
	if a < b {
		a, b = b, a
	}
	return a + SessionIDSeparator + b
}
