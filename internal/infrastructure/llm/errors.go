package llm

import "fmt"

// NetworkError — endpoint недостижим или все попытки вышли по таймауту.
type NetworkError struct {
	Attempts int
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("greenpt unreachable after %d attempt(s): %v", e.Attempts, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// APIError — non-2xx ответ API, не ретраится.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("greenpt api error: %d - %s", e.StatusCode, e.Body)
}
