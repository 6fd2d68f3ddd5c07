package cryptox

// PlaintextAccounts lists the test, demo and template identities whose files
// are stored unencrypted so fixtures stay reproducible. Membership is decided
// by account identity only, never by anything in a path.
type PlaintextAccounts map[string]struct{}

func NewPlaintextAccounts(emails ...string) PlaintextAccounts {
	p := make(PlaintextAccounts, len(emails))
	for _, e := range emails {
		if e != "" {
			p[e] = struct{}{}
		}
	}
	return p
}

func (p PlaintextAccounts) Contains(email string) bool {
	_, ok := p[email]
	return ok
}
