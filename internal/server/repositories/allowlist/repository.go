// Package allowlist answers whether an email is on one of the sign-up
// allow-lists.
package allowlist

import "context"

// Known lists. beta-access gates the "sign up" answer of the email check,
// testers gates the authentication itself.
const (
	BetaAccess = "beta-access"
	Testers    = "testers"
)

type Repository interface {
	Contains(ctx context.Context, list, email string) (bool, error)
}
