package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tarekmz/stopgame/go/internal/models"
)

// ErrUnavailable covers timeouts, transport failures, and malformed judge
// responses. The caller treats it as retryable; no session state changes.
var ErrUnavailable = errors.New("judge service unavailable")

// DefaultTimeout bounds one arbitration round trip.
const DefaultTimeout = 8 * time.Second

// Adapter arbitrates submitted answers against a round letter by calling a
// generative-language endpoint. It is a pure request/response boundary: it
// never mutates session state and its latency is isolated to the one room
// awaiting a verdict.
type Adapter struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewAdapter creates an Adapter. baseURL is the API root without a trailing
// slash, e.g. https://generativelanguage.googleapis.com.
func NewAdapter(baseURL, apiKey, model string) *Adapter {
	return &Adapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// SetTimeout overrides the arbitration time budget.
func (a *Adapter) SetTimeout(timeout time.Duration) {
	a.client.Timeout = timeout
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Judge submits the round letter and answers for arbitration and returns a
// verdict per category, or ErrUnavailable when no trustworthy ruling could be
// obtained within the time budget.
func (a *Adapter) Judge(ctx context.Context, letter string, answers map[string]string) (map[string]models.Verdict, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: buildPrompt(letter, answers)}}}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal judge request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", a.baseURL, a.model, a.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create judge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("judge request failed")
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Msg("judge returned non-success status")
		return nil, ErrUnavailable
	}

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		log.Warn().Err(err).Msg("judge response not decodable")
		return nil, ErrUnavailable
	}
	if len(decoded.Candidates) == 0 || len(decoded.Candidates[0].Content.Parts) == 0 {
		log.Warn().Msg("judge response empty")
		return nil, ErrUnavailable
	}

	verdicts := parseVerdicts(decoded.Candidates[0].Content.Parts[0].Text, answers)
	if len(verdicts) == 0 {
		log.Warn().Msg("judge response contained no recognizable verdicts")
		return nil, ErrUnavailable
	}
	return verdicts, nil
}

// buildPrompt renders the arbitration instructions. The judge is asked to
// answer one line per category in a fixed "category: correct|incorrect"
// format so parsing stays mechanical.
func buildPrompt(letter string, answers map[string]string) string {
	var b strings.Builder
	b.WriteString("You are the expert referee for the animal-object-plant word game.\n")
	fmt.Fprintf(&b, "The round letter is %q. For each category below, rule whether the submitted word is a real word in that category starting with the round letter.\n", letter)
	b.WriteString("Reply with exactly one line per category, formatted as 'category: correct' or 'category: incorrect', and nothing else.\n\n")
	for _, category := range orderedCategories(answers) {
		fmt.Fprintf(&b, "%s: %s\n", category, answers[category])
	}
	return b.String()
}

// parseVerdicts scans the judge's reply line by line. Only categories that
// were actually submitted are accepted; anything unrecognized is dropped.
func parseVerdicts(text string, answers map[string]string) map[string]models.Verdict {
	verdicts := make(map[string]models.Verdict)
	for _, line := range strings.Split(text, "\n") {
		category, ruling, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		category = strings.ToLower(strings.TrimSpace(category))
		if _, submitted := answers[category]; !submitted {
			continue
		}
		if strings.Contains(strings.ToLower(ruling), "incorrect") {
			verdicts[category] = models.VerdictIncorrect
		} else if strings.Contains(strings.ToLower(ruling), "correct") {
			verdicts[category] = models.VerdictCorrect
		}
	}
	return verdicts
}

// orderedCategories lists the submitted categories in standard display order,
// with any unexpected extras appended alphabetically.
func orderedCategories(answers map[string]string) []string {
	seen := make(map[string]bool, len(answers))
	out := make([]string, 0, len(answers))
	for _, c := range models.Categories {
		if _, ok := answers[c]; ok {
			out = append(out, c)
			seen[c] = true
		}
	}
	extras := make([]string, 0)
	for c := range answers {
		if !seen[c] {
			extras = append(extras, c)
		}
	}
	sort.Strings(extras)
	return append(out, extras...)
}
