// Package validate cleans and bounds-checks untrusted player input before it
// reaches session state: name/text sanitization, per-player rate limits and
// the secret-word leakage check.
package validate

import (
	"strings"
	"sync"
	"time"
)

const (
	MaxMessageLength    = 200
	MaxClueLength       = 500
	MaxPlayerNameLength = 30

	rateLimitWindow  = time.Second
	rateLimitMaxMsgs = 5
	voteMinInterval  = 500 * time.Millisecond
)

// SanitizePlayerName uppercases, strips everything outside [A-Z0-9_-] and
// truncates. An input that sanitizes to nothing becomes "PLAYER".
func SanitizePlayerName(name string) string {
	name = strings.TrimSpace(name)
	if len(name) > MaxPlayerNameLength {
		name = name[:MaxPlayerNameLength]
	}
	name = strings.ToUpper(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "PLAYER"
	}
	return b.String()
}

// SanitizeText trims, truncates to MaxMessageLength and escapes HTML-sensitive
// characters.
func SanitizeText(text string) string {
	return sanitize(text, MaxMessageLength)
}

// SanitizeClue is SanitizeText with the larger clue limit.
func SanitizeClue(text string) string {
	return sanitize(text, MaxClueLength)
}

var htmlEscaper = strings.NewReplacer(
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

func sanitize(text string, limit int) string {
	text = strings.TrimSpace(text)
	if len(text) > limit {
		text = text[:limit]
	}
	return htmlEscaper.Replace(text)
}

// ValidatePlayerID accepts any non-empty id shorter than 100 bytes.
func ValidatePlayerID(id string) bool {
	return id != "" && len(id) < 100
}

// ContainsSecretWord reports whether text contains the secret word as a
// case-insensitive substring. An empty secret never matches.
func ContainsSecretWord(text, secret string) bool {
	if secret == "" {
		return false
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(secret))
}

// Limiter tracks per-player message and vote rates. It belongs to one
// controller and dies with it; there is no process-wide instance.
type Limiter struct {
	mu       sync.Mutex
	now      func() time.Time
	messages map[string][]time.Time
	votes    map[string]time.Time
}

func NewLimiter() *Limiter {
	return &Limiter{
		now:      time.Now,
		messages: make(map[string][]time.Time),
		votes:    make(map[string]time.Time),
	}
}

// AllowMessage permits at most 5 messages per player inside a sliding
// one-second window.
func (l *Limiter) AllowMessage(playerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()

	recent := l.messages[playerID][:0]
	for _, ts := range l.messages[playerID] {
		if now.Sub(ts) < rateLimitWindow {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= rateLimitMaxMsgs {
		l.messages[playerID] = recent
		return false
	}
	l.messages[playerID] = append(recent, now)
	return true
}

// AllowVote permits one vote per player per 500ms.
func (l *Limiter) AllowVote(playerID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if last, ok := l.votes[playerID]; ok && now.Sub(last) < voteMinInterval {
		return false
	}
	l.votes[playerID] = now
	return true
}
