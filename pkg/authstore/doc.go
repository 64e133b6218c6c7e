// Package authstore holds the single source of truth for the Habets
// app's authentication state: the session user, the application profile,
// and the authenticated/loading flags. The UI reads published snapshots
// and invokes operations; it never mutates state directly.
//
// The store is constructed explicitly and passed to its consumers; there
// is no package-level singleton. It coordinates three collaborators:
// the remote auth service (pkg/auth.Service), the profile store
// (pkg/profile.Store), and the native/browser identity surfaces for
// Apple and Google sign-in.
//
//	store := authstore.New(svc, profiles,
//		authstore.WithAppleAuthorizer(sheet),
//		authstore.WithLogger(log),
//	)
//	go store.Run(ctx) // session-change bridge
//
//	updates := store.Subscribe(ctx)
//	if err := store.Login(ctx, email, password); err != nil { ... }
//
// Every state publication replaces all four fields at once, so readers
// can never observe IsAuthenticated disagreeing with the user field.
// Direct operations and the session-change bridge write to the same
// state with last-writer-wins semantics; the store does not arbitrate
// between an in-flight operation and a concurrent remote notification.
package authstore
