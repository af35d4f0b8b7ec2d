package validate

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePlayerName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  john!!@#$ ", "JOHN"},
		{"alice", "ALICE"},
		{"x_y-9", "X_Y-9"},
		{"", "PLAYER"},
		{"!!!", "PLAYER"},
		{strings.Repeat("a", 50), strings.Repeat("A", 30)},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, SanitizePlayerName(tc.in), "input %q", tc.in)
	}
}

func TestSanitizeText(t *testing.T) {
	assert.Equal(t, "hello", SanitizeText("  hello  "))
	assert.Equal(t, "&lt;b&gt;hi&lt;&#x2F;b&gt;", SanitizeText(`<b>hi</b>`))
	assert.Equal(t, "&quot;x&#x27;", SanitizeText(`"x'`))

	long := strings.Repeat("a", 300)
	assert.Len(t, SanitizeText(long), MaxMessageLength)

	clue := strings.Repeat("b", 600)
	assert.Len(t, SanitizeClue(clue), MaxClueLength)
}

func TestValidatePlayerID(t *testing.T) {
	assert.True(t, ValidatePlayerID("abc"))
	assert.False(t, ValidatePlayerID(""))
	assert.False(t, ValidatePlayerID(strings.Repeat("x", 100)))
}

func TestContainsSecretWord(t *testing.T) {
	assert.True(t, ContainsSecretWord("I think it is a PiZzA slice", "pizza"))
	assert.False(t, ContainsSecretWord("no hints here", "PIZZA"))
	assert.False(t, ContainsSecretWord("anything", ""))
}

func TestLimiter_Messages(t *testing.T) {
	l := NewLimiter()

	now := time.Unix(1000, 0)
	l.now = func() time.Time { return now }

	// 6 messages inside 900ms: exactly 5 accepted, 1 rejected.
	accepted := 0
	for i := 0; i < 6; i++ {
		if l.AllowMessage("p1") {
			accepted++
		}
		now = now.Add(150 * time.Millisecond)
	}
	require.Equal(t, 5, accepted)

	// window slides: after a full second of silence the player may talk again.
	now = now.Add(time.Second)
	assert.True(t, l.AllowMessage("p1"))

	// independent per player
	assert.True(t, l.AllowMessage("p2"))
}

func TestLimiter_Votes(t *testing.T) {
	l := NewLimiter()

	now := time.Unix(2000, 0)
	l.now = func() time.Time { return now }

	require.True(t, l.AllowVote("p1"))
	assert.False(t, l.AllowVote("p1"))

	now = now.Add(499 * time.Millisecond)
	assert.False(t, l.AllowVote("p1"))

	now = now.Add(2 * time.Millisecond)
	assert.True(t, l.AllowVote("p1"))
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	l := NewLimiter()

	// local actions and relayed messages hit the same limiter from
	// different goroutines
	var wg sync.WaitGroup
	for _, id := range []string{"p1", "p2"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				l.AllowMessage(id)
				l.AllowVote(id)
			}
		}(id)
	}
	wg.Wait()

	assert.False(t, l.AllowVote("p1"))
}
