// Package gotrue is an HTTP client for a GoTrue-compatible
// authentication API. It implements the remote auth service boundary:
// password and signup grants, provider identity-token grants, the PKCE
// authorization-code flow with a loopback callback listener, session
// keeping with background refresh, and session-change notifications.
//
// The Service type satisfies auth.Service:
//
//	var cfg gotrue.Config
//	config.MustLoad(&cfg)
//	svc, err := gotrue.NewService(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
//
//	go svc.Run(ctx) // session refresh loop
//
//	store := authstore.New(svc, profiles)
package gotrue
