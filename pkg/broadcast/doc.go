// Package broadcast is a typed in-process fan-out for event
// notifications. Subscriptions are context-scoped, sends never block,
// and slow consumers are dropped rather than stalling a publish.
//
//	b := broadcast.New[auth.SessionChange](8)
//	defer b.Close()
//
//	events := b.Subscribe(ctx)
//	go func() {
//		for change := range events {
//			handle(change)
//		}
//	}()
//
//	b.Publish(auth.SessionChange{User: user})
package broadcast
