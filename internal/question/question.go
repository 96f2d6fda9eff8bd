// Package question adapts the external banana-puzzle provider into the
// engine's question source.
package question

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
)

// DefaultURL is the public puzzle endpoint the game was built against.
const DefaultURL = "http://marcconrad.com/uob/banana/api.php"

const defaultTimeout = 10 * time.Second

type Config struct {
	URL        string
	HTTPClient *http.Client
}

// Adapter fetches one question per call. It keeps no state; each Question is
// discarded when the next one is fetched.
type Adapter struct {
	url string
	hc  *http.Client
}

func NewAdapter(c Config) *Adapter {
	a := &Adapter{url: c.URL, hc: c.HTTPClient}
	if a.url == "" {
		a.url = DefaultURL
	}
	if a.hc == nil {
		a.hc = &http.Client{Timeout: defaultTimeout}
	}
	return a
}

// payload mirrors the provider response. Solution is a pointer so an absent
// field is distinguishable from a literal zero.
type payload struct {
	Question string `json:"question"`
	Solution *int   `json:"solution"`
}

// Fetch retrieves one question. Any malformed response counts as a fetch
// failure; the caller decides whether to retry.
func (a *Adapter) Fetch(ctx context.Context) (domain.Question, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.url, nil)
	if err != nil {
		return domain.Question{}, errors.Unavailable(fmt.Errorf("question: build request: %w", err))
	}

	resp, err := a.hc.Do(req)
	if err != nil {
		return domain.Question{}, errors.Unavailable(fmt.Errorf("question: fetch: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Question{}, errors.Unavailable(fmt.Errorf("question: provider returned %s", resp.Status))
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return domain.Question{}, errors.Unavailable(fmt.Errorf("question: decode response: %w", err))
	}
	if p.Question == "" || p.Solution == nil {
		return domain.Question{}, errors.Unavailable(fmt.Errorf("question: provider response missing question or solution"))
	}

	return domain.Question{
		ImageRef:     p.Question,
		CorrectValue: *p.Solution,
	}, nil
}
