package auth

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"
)

const callbackPath = "/callback"

// CallbackResult is what an OAuth provider redirect delivered: either
// an authorization code (with the CSRF state, when the provider echoes
// one) or a provider error such as access_denied.
type CallbackResult struct {
	Code      string
	State     string
	ErrorCode string
}

// CallbackListener is a one-shot loopback HTTP server that receives an
// OAuth redirect. It serves exactly one callback; the owner of the
// flow tears it down with Close whether or not the redirect landed.
type CallbackListener struct {
	server  *http.Server
	addr    string
	results chan CallbackResult
	once    sync.Once
}

// NewCallbackListener binds addr (port 0 picks a free port) and starts
// serving the callback path.
func NewCallbackListener(addr string) (*CallbackListener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("auth: bind callback listener: %w", err)
	}

	l := &CallbackListener{
		addr:    ln.Addr().String(),
		results: make(chan CallbackResult, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc(callbackPath, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		l.handle(w, r)
	})
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		// ErrServerClosed is the normal shutdown path.
		_ = l.server.Serve(ln)
	}()

	return l, nil
}

// RedirectURL is the value to register as the flow's redirect target.
func (l *CallbackListener) RedirectURL() string {
	return "http://" + l.addr + callbackPath
}

func (l *CallbackListener) handle(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res := CallbackResult{
		Code:      q.Get("code"),
		State:     q.Get("state"),
		ErrorCode: q.Get("error"),
	}

	if res.Code == "" && res.ErrorCode == "" {
		http.Error(w, "missing authorization code", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if res.ErrorCode != "" {
		fmt.Fprint(w, "<html><body><p>Sign-in was not completed. You can close this window.</p></body></html>")
	} else {
		fmt.Fprint(w, "<html><body><p>Signed in. You can close this window.</p></body></html>")
	}

	l.once.Do(func() { l.results <- res })
}

// Wait blocks until the redirect lands or ctx ends.
func (l *CallbackListener) Wait(ctx context.Context) (CallbackResult, error) {
	select {
	case <-ctx.Done():
		return CallbackResult{}, ctx.Err()
	case res := <-l.results:
		return res, nil
	}
}

// Close shuts the listener down. Safe to call regardless of whether a
// callback arrived.
func (l *CallbackListener) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = l.server.Shutdown(ctx)
}
