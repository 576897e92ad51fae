package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

// Authorizer completes the authorization code grant: it validates the
// returned state and exchanges the code for a token pair.
type Authorizer interface {
	CompleteAuthorization(ctx context.Context, code, returnedState string) error
}

// CallbackHandler serves the authorization redirect endpoint on the loopback
// server. It processes exactly one callback, forwards code and state to the
// [Authorizer], and reports the outcome through Result.
type CallbackHandler struct {
	auth       Authorizer
	resultChan chan error
	once       sync.Once

	mu          sync.Mutex
	callbackHit bool
}

// NewCallbackHandler creates a handler delegating to auth.
func NewCallbackHandler(auth Authorizer) *CallbackHandler {
	return &CallbackHandler{
		auth:       auth,
		resultChan: make(chan error, 1),
	}
}

// Routes returns the path patterns this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the authorization redirect. State validation happens
// inside the Authorizer, before any token request leaves the machine.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	query := r.URL.Query()
	code := query.Get("code")
	if code == "" {
		err := fmt.Errorf("authorization failed: %s - %s",
			query.Get("error"), query.Get("error_description"))
		h.send(err)
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	if err := h.auth.CompleteAuthorization(r.Context(), code, query.Get("state")); err != nil {
		h.send(err)
		http.Error(w, "Authorization failed", http.StatusBadRequest)
		return
	}

	h.send(nil)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, callbackSuccessPage)
}

// send delivers the outcome exactly once and closes the channel.
func (h *CallbackHandler) send(err error) {
	h.once.Do(func() {
		h.resultChan <- err
		close(h.resultChan)
	})
}

// Result returns a channel that receives the single callback outcome (nil on
// success) and is then closed.
func (h *CallbackHandler) Result() <-chan error {
	return h.resultChan
}

const callbackSuccessPage = `<!DOCTYPE html>
<html>
<head>
    <title>Authorization Successful</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>&#10003; Authorization Successful</h1>
        <p>You can close this window and return to the jukebox.</p>
    </div>
</body>
</html>
`
