package generation

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alantheprice/proven/pkg/utils"
)

type scriptedBackend struct {
	responses []string
	errs      []error
	calls     int
}

func (s *scriptedBackend) Name() string  { return "scripted" }
func (s *scriptedBackend) Model() string { return "m" }

func (s *scriptedBackend) Generate(ctx context.Context, req Request) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.responses) {
		return s.responses[i], nil
	}
	return "", errors.New("script exhausted")
}

type stubFactory struct {
	name     string
	needsKey bool
}

func (f stubFactory) Name() string         { return f.name }
func (f stubFactory) DefaultModel() string { return f.name + "-default" }
func (f stubFactory) RequiresAPIKey() bool { return f.needsKey }
func (f stubFactory) Create(cfg ProviderConfig) (Backend, error) {
	if err := ValidateCommon(f, cfg); err != nil {
		return nil, err
	}
	return &scriptedBackend{}, nil
}

func fastBackoff() *utils.RateLimitBackoff {
	b := utils.NewRateLimitBackoff()
	b.BaseDelay = time.Millisecond
	b.MaxDelay = 5 * time.Millisecond
	b.BufferTime = 0
	return b
}

func TestExtractCode(t *testing.T) {
	tests := []struct {
		name     string
		response string
		language string
		want     string
		wantErr  string
	}{
		{"tagged fence wins", "intro\n```js\nconsole.log(1)\n```\n```python\nprint(1)\n```", "python", "print(1)\n", ""},
		{"untagged fence", "Here:\n```\nx = 1\n```\nbye", "python", "x = 1\n", ""},
		{"other tag", "```py\nx = 2\n```", "python", "x = 2\n", ""},
		{"no fence", "  def f():\n    return 1\n\n", "python", "def f():\n    return 1\n", ""},
		{"empty fence", "```python\n\n```", "python", "", "no code"},
		{"blank response", "   \n", "python", "", "no code"},
		{"two tagged fences", "```python\ndef f(): pass\n```\nUsage:\n```python\nf()\n```", "python", "", "2 python code blocks"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCode(tt.response, tt.language)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyStatus(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "3")

	tests := []struct {
		status int
		body   string
		kind   ErrorKind
	}{
		{401, "bad key", AuthenticationFailed},
		{403, "forbidden", AuthenticationFailed},
		{403, "You exceeded your current quota", RateLimited},
		{429, "slow down", RateLimited},
		{500, "oops", ServiceUnavailable},
		{503, "", ServiceUnavailable},
		{529, "overloaded", ServiceUnavailable},
		{404, "model not found", RequestFailed},
	}
	for _, tt := range tests {
		e := ClassifyStatus("p", tt.status, h, tt.body)
		assert.Equal(t, tt.kind, e.Kind, "status %d", tt.status)
	}

	rl := ClassifyStatus("p", 429, h, "")
	assert.Equal(t, 3*time.Second, rl.RetryAfter)
	assert.True(t, rl.Retryable())
	assert.Contains(t, rl.Error(), "status 429")
}

func TestTransportError(t *testing.T) {
	assert.Nil(t, TransportError("p", nil))
	assert.ErrorIs(t, TransportError("p", context.Canceled), context.Canceled)

	err := TransportError("p", errors.New("connection refused"))
	assert.Equal(t, ServiceUnavailable, KindOf(err))
	assert.True(t, IsRetryable(err))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}

func TestGenerateRetriesTransientErrors(t *testing.T) {
	b := &scriptedBackend{
		errs: []error{
			&Error{Kind: RateLimited, Provider: "scripted"},
			&Error{Kind: ServiceUnavailable, Provider: "scripted"},
		},
		responses: []string{"", "", "```python\nx = 1\n```"},
	}
	var notified []int
	code, err := Generate(context.Background(), b, Request{Language: "python"}, fastBackoff(), func(e *Error, retry int, wait string) {
		notified = append(notified, retry)
	})
	require.NoError(t, err)
	assert.Equal(t, "x = 1\n", code)
	assert.Equal(t, 3, b.calls)
	assert.Equal(t, []int{1, 2}, notified)
}

func TestGenerateFatalErrorIsNotRetried(t *testing.T) {
	b := &scriptedBackend{errs: []error{&Error{Kind: AuthenticationFailed}}}
	_, err := Generate(context.Background(), b, Request{}, fastBackoff(), nil)
	assert.Equal(t, AuthenticationFailed, KindOf(err))
	assert.Equal(t, 1, b.calls)
}

func TestGenerateGivesUpAfterMaxRetries(t *testing.T) {
	backoff := fastBackoff()
	backoff.MaxRetries = 2
	unavailable := &Error{Kind: ServiceUnavailable}
	b := &scriptedBackend{errs: []error{unavailable, unavailable, unavailable, unavailable}}

	_, err := Generate(context.Background(), b, Request{}, backoff, nil)
	assert.Equal(t, ServiceUnavailable, KindOf(err))
	assert.Equal(t, 3, b.calls)
}

func TestGenerateEmptyResponseIsInvalid(t *testing.T) {
	b := &scriptedBackend{responses: []string{"```\n```"}}
	_, err := Generate(context.Background(), b, Request{}, fastBackoff(), nil)
	assert.Equal(t, InvalidResponse, KindOf(err))
}

func TestGenerateSeveralCodeBlocksIsInvalid(t *testing.T) {
	b := &scriptedBackend{responses: []string{"```python\ndef f(): pass\n```\n```python\nf()\n```"}}
	_, err := Generate(context.Background(), b, Request{Language: "python"}, fastBackoff(), nil)
	assert.Equal(t, InvalidResponse, KindOf(err))
	assert.ErrorContains(t, err, "expected one")
	assert.Equal(t, 1, b.calls)
}

func TestGenerateStopsWaitingOnCancel(t *testing.T) {
	backoff := fastBackoff()
	backoff.BaseDelay = time.Minute
	backoff.MaxDelay = time.Minute
	b := &scriptedBackend{errs: []error{&Error{Kind: RateLimited}}}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	_, err := Generate(ctx, b, Request{}, backoff, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(stubFactory{name: "anthropic", needsKey: true}, "claude"))
	require.NoError(t, r.Register(stubFactory{name: "ollama"}))

	assert.Error(t, r.Register(stubFactory{name: "anthropic"}))
	assert.Error(t, r.Register(stubFactory{name: "other"}, "claude"))
	assert.Error(t, r.Register(stubFactory{name: "x"}, "ollama"))

	name, ok := r.Resolve("Claude")
	assert.True(t, ok)
	assert.Equal(t, "anthropic", name)
	assert.Equal(t, []string{"anthropic", "ollama"}, r.Names())

	_, err := r.Create(ProviderConfig{Name: "claude"})
	assert.ErrorContains(t, err, "API key is required")

	b, err := r.Create(ProviderConfig{Name: "ollama"})
	require.NoError(t, err)
	assert.NotNil(t, b)

	_, err = r.Create(ProviderConfig{Name: "nope"})
	assert.ErrorContains(t, err, "unknown provider")
}
