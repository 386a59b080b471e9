package knowledge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want Verdict
	}{
		{"json", `{"verdict": "confirmed", "rationale": "calls it"}`, VerdictConfirmed},
		{"fenced json", "```json\n{\"verdict\": \"UNCONFIRMED\", \"rationale\": \"comment only\"}\n```", VerdictUnconfirmed},
		{"prose around json", `Sure. {"verdict":"confirmed","rationale":"x"} Done.`, VerdictConfirmed},
		{"keyword", "Unconfirmed, the name is only in a string.", VerdictUnconfirmed},
		{"yes", "Yes, it is called.", VerdictConfirmed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := parseVerdict(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.Verdict)
		})
	}

	_, err := parseVerdict("   ")
	assert.Error(t, err)
	_, err = parseVerdict("maybe")
	assert.Error(t, err)
}

func TestOpenAIService_Verify(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"verdict\":\"confirmed\",\"rationale\":\"line 3 calls SaveAll\"}"}}]}`))
	}))
	defer srv.Close()

	svc := NewOpenAIService("sk-test", "test-model", srv.URL)
	resp, err := svc.Verify(context.Background(), VerifyRequest{
		CallerName:      "Button1Click",
		CallerBody:      "begin\n  SaveAll;\nend;",
		CandidateCallee: "SaveAll",
		Language:        "delphi",
	})
	require.NoError(t, err)
	assert.True(t, resp.Confirmed())
	assert.Equal(t, "line 3 calls SaveAll", resp.Rationale)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Contains(t, got.Messages[0].Content, "Candidate callee: SaveAll")
	assert.Contains(t, got.Messages[0].Content, "```delphi")
}

func TestOpenAIService_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := NewOpenAIService("sk-test", "m", srv.URL+"/v1").Verify(context.Background(), VerifyRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, err = NewOpenAIService("", "m", srv.URL).Verify(context.Background(), VerifyRequest{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestNewService(t *testing.T) {
	ctx := context.Background()

	svc, err := NewService(ctx, Options{Provider: "OpenAI", APIKey: "k"})
	require.NoError(t, err)
	openai, ok := svc.(*OpenAIService)
	require.True(t, ok)
	assert.Equal(t, defaultOpenAIModel, openai.model)

	_, err = NewService(ctx, Options{Provider: "gemini"})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = NewService(ctx, Options{Provider: "carrier-pigeon"})
	assert.Error(t, err)
}

type funcService func(ctx context.Context, req VerifyRequest) (VerifyResponse, error)

func (f funcService) Verify(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
	return f(ctx, req)
}

func TestBounded_LimitsConcurrency(t *testing.T) {
	var inFlight, peak int32
	slow := funcService(func(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return VerifyResponse{Verdict: VerdictConfirmed}, nil
	})

	b := NewBounded(slow, 2, time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Verify(context.Background(), VerifyRequest{CandidateCallee: "X"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestBounded_Timeout(t *testing.T) {
	hang := funcService(func(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
		<-ctx.Done()
		return VerifyResponse{}, ctx.Err()
	})

	b := NewBounded(hang, 1, 20*time.Millisecond)
	_, err := b.Verify(context.Background(), VerifyRequest{CandidateCallee: "SaveAll"})
	require.ErrorIs(t, err, ErrServiceTimeout)
	assert.Contains(t, err.Error(), "SaveAll")

	// the slot is released after a timeout
	ok := NewBounded(funcService(func(context.Context, VerifyRequest) (VerifyResponse, error) {
		return VerifyResponse{Verdict: VerdictUnconfirmed}, nil
	}), 1, time.Second)
	resp, err := ok.Verify(context.Background(), VerifyRequest{})
	require.NoError(t, err)
	assert.False(t, resp.Confirmed())
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][2]string
	failGet bool
}

func (m *memoryCache) LoadVerdict(_ context.Context, key string) (string, string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failGet {
		return "", "", false, errors.New("cache offline")
	}
	e, ok := m.entries[key]
	return e[0], e[1], ok, nil
}

func (m *memoryCache) StoreVerdict(_ context.Context, key, verdict, rationale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = [2]string{verdict, rationale}
	return nil
}

func TestCached(t *testing.T) {
	calls := 0
	svc := funcService(func(ctx context.Context, req VerifyRequest) (VerifyResponse, error) {
		calls++
		return VerifyResponse{Verdict: VerdictConfirmed, Rationale: "call " + strings.Repeat("!", calls)}, nil
	})
	cache := &memoryCache{entries: make(map[string][2]string)}
	c := NewCached(svc, cache, nil)

	req := VerifyRequest{CallerName: "A", CallerBody: "B();", CandidateCallee: "B"}
	first, err := c.Verify(context.Background(), req)
	require.NoError(t, err)
	second, err := c.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	other := req
	other.CandidateCallee = "C"
	_, err = c.Verify(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	cache.failGet = true
	_, err = c.Verify(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}
