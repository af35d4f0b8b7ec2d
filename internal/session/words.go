package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Word is a secret word/category pair. Both fields are uppercase.
type Word struct {
	Word     string `json:"word"`
	Category string `json:"category"`
}

// WordSource produces the round's secret word for a language tag ("en","es").
type WordSource interface {
	Generate(ctx context.Context, lang string) (Word, error)
}

// fallbackWords are the deterministic no-network word lists. Used whenever
// the primary source fails or returns garbage.
var fallbackWords = map[string][]Word{
	"en": {
		{"FIREWALL", "TECHNOLOGY"}, {"KEYBOARD", "TECHNOLOGY"}, {"SATELLITE", "TECHNOLOGY"},
		{"ROUTER", "TECHNOLOGY"}, {"PIZZA", "FOOD"}, {"BURRITO", "FOOD"},
		{"PANCAKE", "FOOD"}, {"COFFEE", "FOOD"}, {"SURGEON", "PROFESSIONS"},
		{"PILOT", "PROFESSIONS"}, {"LOCKSMITH", "PROFESSIONS"}, {"LIBRARIAN", "PROFESSIONS"},
		{"LIGHTHOUSE", "LOCATIONS"}, {"SUBWAY", "LOCATIONS"}, {"CASINO", "LOCATIONS"},
		{"HELICOPTER", "VEHICLES"}, {"SUBMARINE", "VEHICLES"}, {"TRACTOR", "VEHICLES"},
		{"OCTOPUS", "ANIMALS"}, {"PENGUIN", "ANIMALS"}, {"SCORPION", "ANIMALS"},
		{"UMBRELLA", "OBJECTS"}, {"TELESCOPE", "OBJECTS"}, {"HAMMER", "OBJECTS"},
	},
	"es": {
		{"CORTAFUEGOS", "TECNOLOGIA"}, {"TECLADO", "TECNOLOGIA"}, {"SATELITE", "TECNOLOGIA"},
		{"ENRUTADOR", "TECNOLOGIA"}, {"PIZZA", "COMIDA"}, {"BURRITO", "COMIDA"},
		{"PANQUEQUE", "COMIDA"}, {"CAFE", "COMIDA"}, {"CIRUJANO", "PROFESIONES"},
		{"PILOTO", "PROFESIONES"}, {"CERRAJERO", "PROFESIONES"}, {"BIBLIOTECARIO", "PROFESIONES"},
		{"FARO", "LUGARES"}, {"METRO", "LUGARES"}, {"CASINO", "LUGARES"},
		{"HELICOPTERO", "VEHICULOS"}, {"SUBMARINO", "VEHICULOS"}, {"TRACTOR", "VEHICULOS"},
		{"PULPO", "ANIMALES"}, {"PINGUINO", "ANIMALES"}, {"ESCORPION", "ANIMALES"},
		{"PARAGUAS", "OBJETOS"}, {"TELESCOPIO", "OBJETOS"}, {"MARTILLO", "OBJETOS"},
	},
}

// LocalWords picks uniformly from the built-in lists. Unknown languages fall
// back to English.
type LocalWords struct {
	rng *rand.Rand
}

func NewLocalWords() *LocalWords {
	return &LocalWords{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (l *LocalWords) Generate(_ context.Context, lang string) (Word, error) {
	list, ok := fallbackWords[lang]
	if !ok {
		list = fallbackWords["en"]
	}
	return list[l.rng.Intn(len(list))], nil
}

// HTTPWords asks an external word service: GET {base}/word?lang=xx returning
// {"word":"...","category":"..."}. Callers wrap it in WithFallback.
type HTTPWords struct {
	BaseURL string
	Client  *http.Client
}

func (h *HTTPWords) Generate(ctx context.Context, lang string) (Word, error) {
	client := h.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}

	u := strings.TrimSuffix(h.BaseURL, "/") + "/word?lang=" + url.QueryEscape(lang)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Word{}, err
	}

	resp, err := client.Do(req)
	if err != nil {
		return Word{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Word{}, fmt.Errorf("word service: status %d", resp.StatusCode)
	}

	var w Word
	if err := json.NewDecoder(resp.Body).Decode(&w); err != nil {
		return Word{}, fmt.Errorf("word service: %w", err)
	}
	if w.Word == "" || w.Category == "" {
		return Word{}, fmt.Errorf("word service: malformed response")
	}
	w.Word = strings.ToUpper(strings.TrimSpace(w.Word))
	w.Category = strings.ToUpper(strings.TrimSpace(w.Category))
	return w, nil
}

// WithFallback tries primary once and switches to the local lists on any
// error. The primary is never retried.
func WithFallback(primary WordSource) WordSource {
	return &fallbackSource{primary: primary, local: NewLocalWords()}
}

type fallbackSource struct {
	primary WordSource
	local   *LocalWords
}

func (f *fallbackSource) Generate(ctx context.Context, lang string) (Word, error) {
	if f.primary != nil {
		if w, err := f.primary.Generate(ctx, lang); err == nil {
			return w, nil
		}
	}
	return f.local.Generate(ctx, lang)
}
