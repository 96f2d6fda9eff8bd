package question_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bananagame/banago/internal/domain"
	"github.com/bananagame/banago/internal/errors"
	"github.com/bananagame/banago/internal/question"
)

func TestAdapter_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"question": "https://example.com/banana/1.png", "solution": 7}`))
	}))
	t.Cleanup(srv.Close)

	a := question.NewAdapter(question.Config{URL: srv.URL})

	q, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, domain.Question{
		ImageRef:     "https://example.com/banana/1.png",
		CorrectValue: 7,
	}, q)
}

func TestAdapter_Fetch_SolutionZero(t *testing.T) {
	// A literal zero solution is valid and must not be confused with an
	// absent field.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"question": "https://example.com/banana/2.png", "solution": 0}`))
	}))
	t.Cleanup(srv.Close)

	a := question.NewAdapter(question.Config{URL: srv.URL})

	q, err := a.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, q.CorrectValue)
}

func TestAdapter_Fetch_Failures(t *testing.T) {
	tests := map[string]struct {
		handler http.HandlerFunc
	}{
		"provider error status": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
		},
		"malformed body": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`not json`))
			},
		},
		"missing solution": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"question": "https://example.com/banana/3.png"}`))
			},
		},
		"missing question": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"solution": 4}`))
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(tt.handler)
			t.Cleanup(srv.Close)

			a := question.NewAdapter(question.Config{URL: srv.URL})

			_, err := a.Fetch(context.Background())
			require.Error(t, err)
			require.True(t, errors.IsCode(err, errors.CodeUnavailable))
		})
	}
}

func TestAdapter_Fetch_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	a := question.NewAdapter(question.Config{URL: srv.URL})

	_, err := a.Fetch(context.Background())
	require.Error(t, err)
	require.True(t, errors.IsCode(err, errors.CodeUnavailable))
}
