// Package devauth is a self-hosted auth.Service for development and
// tests: bcrypt-hashed password accounts in memory, a Google OAuth
// code flow over a loopback callback listener, and Apple identity
// token verification against Apple's JWKS. It emits the same
// session-change notifications as the hosted backend, so the state
// container behaves identically against either.
//
//	svc := devauth.NewService(
//		devauth.WithGoogle(googleCfg),
//		devauth.WithAppleVerifier(verifier),
//	)
//	defer svc.Close()
//
//	store := authstore.New(svc, profile.NewMemoryStore())
package devauth
