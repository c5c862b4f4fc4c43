package generate

import (
	"bufio"
	"context"
	crand "crypto/rand"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"refinery/internal/logging"
)

//go:embed words.txt
var embeddedWords string

// domains mirrors the fields propositions are attributed to.
var domains = []string{
	"philosophy", "physics", "mathematics", "linguistics", "biology",
	"computer science", "economics", "psychology", "sociology", "anthropology",
	"neuroscience", "chemistry", "geology", "astronomy", "political theory",
	"ethics", "epistemology", "aesthetics", "logic", "metaphysics",
}

const randomOrgURL = "https://www.random.org/integers/"

// Entropy supplies seed words and domains. It prefers true random integers
// from random.org and silently degrades to crypto/rand when the API is
// unreachable; once degraded it stays local for the rest of the run.
type Entropy struct {
	httpClient   *http.Client
	logger       *slog.Logger
	useAPI       bool
	apiAvailable bool
	words        []string
}

// EntropyOption customizes the entropy source.
type EntropyOption func(*Entropy)

// WithoutRandomOrg disables the remote integer source.
func WithoutRandomOrg() EntropyOption {
	return func(e *Entropy) { e.useAPI = false }
}

// WithEntropyHTTPClient overrides the HTTP client used for random.org.
func WithEntropyHTTPClient(client *http.Client) EntropyOption {
	return func(e *Entropy) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithEntropyLogger sets the logger for fallback notices.
func WithEntropyLogger(logger *slog.Logger) EntropyOption {
	return func(e *Entropy) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEntropy builds an entropy source backed by the embedded word list.
func NewEntropy(opts ...EntropyOption) *Entropy {
	entropy := &Entropy{
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logging.NewNop(),
		useAPI:       true,
		apiAvailable: true,
		words:        loadWords(),
	}
	for _, opt := range opts {
		opt(entropy)
	}
	return entropy
}

func loadWords() []string {
	var words []string
	scanner := bufio.NewScanner(strings.NewReader(embeddedWords))
	for scanner.Scan() {
		if word := strings.TrimSpace(scanner.Text()); word != "" {
			words = append(words, word)
		}
	}
	return words
}

// SeedWords returns between 2 and 4 random words for one composition prompt.
func (e *Entropy) SeedWords(ctx context.Context) ([]string, error) {
	counts, err := e.integers(ctx, 1, 2, 4)
	if err != nil {
		return nil, err
	}
	indexes, err := e.integers(ctx, counts[0], 0, len(e.words)-1)
	if err != nil {
		return nil, err
	}
	words := make([]string, 0, len(indexes))
	for _, index := range indexes {
		words = append(words, e.words[index])
	}
	return words, nil
}

// Domain picks a random domain tag.
func (e *Entropy) Domain(ctx context.Context) (string, error) {
	indexes, err := e.integers(ctx, 1, 0, len(domains)-1)
	if err != nil {
		return "", err
	}
	return domains[indexes[0]], nil
}

func (e *Entropy) integers(ctx context.Context, count, min, max int) ([]int, error) {
	if count < 1 || max < min {
		return nil, fmt.Errorf("entropy: invalid request count=%d min=%d max=%d", count, min, max)
	}
	if e.useAPI && e.apiAvailable {
		numbers, err := e.remoteIntegers(ctx, count, min, max)
		if err == nil {
			return numbers, nil
		}
		e.apiAvailable = false
		e.logger.Warn("random.org unavailable, using local randomness", logging.Error(err))
	}
	return localIntegers(count, min, max)
}

func (e *Entropy) remoteIntegers(ctx context.Context, count, min, max int) ([]int, error) {
	params := url.Values{
		"num":    {strconv.Itoa(count)},
		"min":    {strconv.Itoa(min)},
		"max":    {strconv.Itoa(max)},
		"col":    {"1"},
		"base":   {"10"},
		"format": {"plain"},
		"rnd":    {"new"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, randomOrgURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("random.org status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, err
	}
	var numbers []int
	for _, line := range strings.Split(strings.TrimSpace(string(body)), "\n") {
		number, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil {
			return nil, fmt.Errorf("random.org payload: %w", err)
		}
		if number < min || number > max {
			return nil, fmt.Errorf("random.org value %d outside [%d, %d]", number, min, max)
		}
		numbers = append(numbers, number)
	}
	if len(numbers) != count {
		return nil, fmt.Errorf("random.org returned %d values, want %d", len(numbers), count)
	}
	return numbers, nil
}

func localIntegers(count, min, max int) ([]int, error) {
	span := big.NewInt(int64(max - min + 1))
	numbers := make([]int, 0, count)
	for i := 0; i < count; i++ {
		n, err := crand.Int(crand.Reader, span)
		if err != nil {
			return nil, fmt.Errorf("local randomness: %w", err)
		}
		numbers = append(numbers, min+int(n.Int64()))
	}
	return numbers, nil
}
