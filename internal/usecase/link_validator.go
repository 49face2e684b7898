package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cartcompass/backend/internal/domain"
	"github.com/cartcompass/backend/internal/infrastructure/metrics"
)

// Negative patterns meaning the product or page is gone. Ordered; any match
// is INVALID and short-circuits the remaining stages.
var unavailablePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)product\s+no\s+longer\s+(exists|available|sold)`),
	regexp.MustCompile(`(?is)no\s+longer\s+(available|exists|sold|in\s+stock)`),
	regexp.MustCompile(`(?is)this\s+item\s+is\s+no\s+longer`),
	regexp.MustCompile(`(?is)discontinued`),
	regexp.MustCompile(`(?is)page\s+not\s+found`),
	regexp.MustCompile(`(?is)sorry[,.]?\s*we\s+(couldn't|could\s+not)\s+find`),
	regexp.MustCompile(`(?is)we\s+couldn't\s+find\s+that`),
	regexp.MustCompile(`(?is)item\s+not\s+found`),
	regexp.MustCompile(`(?is)product\s+not\s+found`),
	regexp.MustCompile(`(?is)no\s+longer\s+in\s+(our\s+)?(catalog|store)`),
	regexp.MustCompile(`(?is)has\s+been\s+removed`),
	regexp.MustCompile(`(?is)no\s+longer\s+carry`),
	regexp.MustCompile(`(?is)currently\s+unavailable`),
	regexp.MustCompile(`(?is)out\s+of\s+stock`),
}

// Positive signals of a live product page, applied only when no negative
// pattern fired.
var productSignalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)add\s+to\s+(cart|bag)`),
	regexp.MustCompile(`(?i)buy\s+now`),
	regexp.MustCompile(`[\$£]\s*[\d,]+(?:\.\d{2})?`),
	regexp.MustCompile(`(?i)price[:\s]`),
}

var htmlTagRegex = regexp.MustCompile(`<[^>]+>`)

// LinkValidatorConfig holds the validator tunables. Zero durations disable
// caching for that state.
type LinkValidatorConfig struct {
	TTLValid         time.Duration
	TTLInvalid       time.Duration
	TTLUnknown       time.Duration
	BackoffThreshold int
	BackoffCooldown  time.Duration
}

// LinkValidator decides VALID / INVALID / UNKNOWN for product URLs through
// staged checks with a verdict cache and per-domain backoff. Every stage
// beyond the shape check is independently disableable: a nil fetcher,
// capturer, or judge simply removes that stage.
type LinkValidator struct {
	fetcher     domain.PageFetcher
	capturer    domain.ScreenshotCapturer
	visionJudge domain.Judge
	textJudge   domain.Judge
	cache       domain.CacheRepository
	config      LinkValidatorConfig

	mu      sync.Mutex
	domains map[string]*domainState

	now func() time.Time
}

type domainState struct {
	consecutiveFailures int
	cooldownUntil       time.Time
}

// NewLinkValidator creates a validator. capturer, visionJudge, and textJudge
// may be nil; the pipeline degrades to the remaining stages.
func NewLinkValidator(
	fetcher domain.PageFetcher,
	capturer domain.ScreenshotCapturer,
	visionJudge domain.Judge,
	textJudge domain.Judge,
	cache domain.CacheRepository,
	config LinkValidatorConfig,
) *LinkValidator {
	if config.BackoffThreshold <= 0 {
		config.BackoffThreshold = 3
	}
	if config.BackoffCooldown <= 0 {
		config.BackoffCooldown = time.Hour
	}
	return &LinkValidator{
		fetcher:     fetcher,
		capturer:    capturer,
		visionJudge: visionJudge,
		textJudge:   textJudge,
		cache:       cache,
		config:      config,
		domains:     make(map[string]*domainState),
		now:         time.Now,
	}
}

// Validate runs the staged pipeline for one URL. A timeout or network
// failure yields UNKNOWN, never an error that aborts the caller.
func (v *LinkValidator) Validate(ctx context.Context, rawURL string) domain.LinkVerdict {
	trimmed := strings.TrimSpace(rawURL)
	if !urlShapeOK(trimmed) {
		return domain.LinkVerdict{
			URL:       trimmed,
			State:     domain.LinkInvalid,
			Reason:    domain.ReasonBadURLShape,
			CheckedAt: v.now(),
		}
	}

	if cached, ok := v.cachedVerdict(ctx, trimmed); ok {
		metrics.VerdictCacheHits.Inc()
		return cached
	}

	host := hostOf(trimmed)
	if v.inBackoff(host) {
		return domain.LinkVerdict{
			URL:       trimmed,
			State:     domain.LinkUnknown,
			Reason:    domain.ReasonDomainBackoff,
			CheckedAt: v.now(),
		}
	}

	verdict := v.check(ctx, trimmed)
	metrics.LinkVerdicts.WithLabelValues(string(verdict.State), verdict.Reason).Inc()
	v.recordOutcome(host, verdict.State)
	v.store(ctx, verdict)
	return verdict
}

// FirstValidAlternative returns the best-ranked product in the pool, other
// than excludeID, whose URL validates. Used when a verified comparison link
// is needed; nil when none qualifies.
func (v *LinkValidator) FirstValidAlternative(ctx context.Context, pool []domain.RankedProduct, excludeID string) *domain.RankedProduct {
	candidates := make([]domain.RankedProduct, 0, len(pool))
	for _, rp := range pool {
		if rp.Product.ID != excludeID && rp.Product.ProductURL != "" {
			candidates = append(candidates, rp)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Rank < candidates[j].Rank
	})

	for _, rp := range candidates {
		if v.Validate(ctx, rp.Product.ProductURL).State == domain.LinkValid {
			found := rp
			return &found
		}
	}
	return nil
}

// check runs stages 2-7: fetch, negative patterns, positive signals, vision
// judge, text judge, inconclusive.
func (v *LinkValidator) check(ctx context.Context, checkURL string) domain.LinkVerdict {
	verdict := func(state domain.VerdictState, reason string) domain.LinkVerdict {
		return domain.LinkVerdict{
			URL:       checkURL,
			State:     state,
			Reason:    reason,
			CheckedAt: v.now(),
			TTL:       v.ttlFor(state),
		}
	}

	if v.fetcher == nil {
		return verdict(domain.LinkUnknown, domain.ReasonInconclusive)
	}

	snippet, err := v.fetcher.FetchSnippet(ctx, checkURL)
	if err != nil {
		log.Printf("[validator] fetch %s: %v", truncate(checkURL, 80), err)
		return verdict(domain.LinkUnknown, domain.ReasonFetchFailed)
	}

	text := strings.ToLower(strings.ReplaceAll(htmlTagRegex.ReplaceAllString(snippet, " "), "&nbsp;", " "))

	if len(text) >= 50 {
		for _, pattern := range unavailablePatterns {
			if pattern.MatchString(text) {
				return verdict(domain.LinkInvalid, domain.ReasonUnavailablePattern)
			}
		}
	}

	for _, pattern := range productSignalPatterns {
		if pattern.MatchString(text) {
			return verdict(domain.LinkValid, domain.ReasonProductSignals)
		}
	}

	if v.capturer != nil && v.visionJudge != nil {
		if answer, ok := v.visionVerdict(ctx, checkURL); ok {
			if answer == domain.JudgeYes {
				return verdict(domain.LinkInvalid, domain.ReasonVisionJudge)
			}
			return verdict(domain.LinkValid, domain.ReasonVisionJudge)
		}
	}

	if v.textJudge != nil && len(strings.TrimSpace(text)) >= 100 {
		answer, err := v.textJudge.Judge(ctx, domain.JudgeInput{Text: snippetForJudge(snippet)})
		if err == nil {
			if answer == domain.JudgeYes {
				return verdict(domain.LinkInvalid, domain.ReasonTextJudge)
			}
			return verdict(domain.LinkValid, domain.ReasonTextJudge)
		}
		log.Printf("[validator] text judge %s: %v", truncate(checkURL, 80), err)
	}

	return verdict(domain.LinkUnknown, domain.ReasonInconclusive)
}

func (v *LinkValidator) visionVerdict(ctx context.Context, checkURL string) (domain.JudgeAnswer, bool) {
	image, err := v.capturer.Capture(ctx, checkURL)
	if err != nil || len(image) == 0 {
		log.Printf("[validator] screenshot %s: %v", truncate(checkURL, 60), err)
		return "", false
	}
	answer, err := v.visionJudge.Judge(ctx, domain.JudgeInput{Image: image})
	if err != nil {
		log.Printf("[validator] vision judge %s: %v", truncate(checkURL, 60), err)
		return "", false
	}
	return answer, true
}

func (v *LinkValidator) cachedVerdict(ctx context.Context, checkURL string) (domain.LinkVerdict, bool) {
	if v.cache == nil {
		return domain.LinkVerdict{}, false
	}
	value, err := v.cache.Get(ctx, verdictCacheKey(checkURL))
	if err != nil {
		return domain.LinkVerdict{}, false
	}

	// Values come back as generic JSON shapes from either cache backend
	raw, err := json.Marshal(value)
	if err != nil {
		return domain.LinkVerdict{}, false
	}
	var verdict domain.LinkVerdict
	if err := json.Unmarshal(raw, &verdict); err != nil {
		return domain.LinkVerdict{}, false
	}
	verdict.Cached = true
	return verdict, true
}

func (v *LinkValidator) store(ctx context.Context, verdict domain.LinkVerdict) {
	if v.cache == nil || verdict.TTL <= 0 {
		return
	}
	if err := v.cache.Set(ctx, verdictCacheKey(verdict.URL), verdict, verdict.TTL); err != nil {
		log.Printf("[validator] cache set %s: %v", truncate(verdict.URL, 60), err)
	}
}

func (v *LinkValidator) ttlFor(state domain.VerdictState) time.Duration {
	// VALID lives longest: a stale false positive is cheaper than
	// re-checking a page that was fine an hour ago
	switch state {
	case domain.LinkValid:
		return v.config.TTLValid
	case domain.LinkInvalid:
		return v.config.TTLInvalid
	default:
		return v.config.TTLUnknown
	}
}

func (v *LinkValidator) inBackoff(host string) bool {
	if host == "" {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.domains[host]
	return ok && v.now().Before(state.cooldownUntil)
}

// recordOutcome counts consecutive non-VALID outcomes per domain; hitting the
// threshold starts a cooldown during which checks short-circuit to UNKNOWN.
func (v *LinkValidator) recordOutcome(host string, state domain.VerdictState) {
	if host == "" {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	entry, ok := v.domains[host]
	if !ok {
		entry = &domainState{}
		v.domains[host] = entry
	}

	if state == domain.LinkValid {
		entry.consecutiveFailures = 0
		entry.cooldownUntil = time.Time{}
		return
	}

	entry.consecutiveFailures++
	if entry.consecutiveFailures >= v.config.BackoffThreshold {
		entry.cooldownUntil = v.now().Add(v.config.BackoffCooldown)
		entry.consecutiveFailures = 0
		log.Printf("[validator] backing off domain %s for %s", host, v.config.BackoffCooldown)
	}
}

func urlShapeOK(rawURL string) bool {
	if rawURL == "" {
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return parsed.Host
}

func verdictCacheKey(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	return "link:" + hex.EncodeToString(sum[:])
}

func snippetForJudge(snippet string) string {
	text := strings.TrimSpace(htmlTagRegex.ReplaceAllString(snippet, " "))
	if len(text) > 3000 {
		text = text[:3000]
	}
	return text
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
