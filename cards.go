package main

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"math/rand"
	"os"
)

// CardKind distinguishes prompt ("black") cards from response ("white") cards.
type CardKind int

const (
	PromptCard CardKind = iota
	ResponseCard
)

// Card is immutable once created. The ID is an opaque token unique
// within its catalog.
type Card struct {
	ID   string
	Text string
	Kind CardKind
}

// Catalog is the immutable set of card texts a room's decks are built
// from. Rooms never mutate it; each room copies it into its own Deck.
type Catalog struct {
	prompts   []Card
	responses []Card
}

//go:embed decks/prompts.txt
var defaultPrompts []byte

//go:embed decks/responses.txt
var defaultResponses []byte

// parseDeck reads one card per line, skipping blank lines and lines
// starting with '#'.
func parseDeck(data []byte, kind CardKind) []Card {
	prefix := "p"
	if kind == ResponseCard {
		prefix = "r"
	}

	var cards []Card

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		cards = append(cards, Card{
			ID:   fmt.Sprintf("%s%03d", prefix, len(cards)+1),
			Text: string(line),
			Kind: kind,
		})
	}

	return cards
}

// loadCatalog builds the card catalog, preferring card files named in
// the config over the embedded defaults.
func loadCatalog(cfg *Config) (*Catalog, error) {
	prompts := defaultPrompts
	responses := defaultResponses

	if cfg.promptsFile != "" {
		data, err := os.ReadFile(cfg.promptsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt deck: %w", err)
		}
		prompts = data
	}

	if cfg.responsesFile != "" {
		data, err := os.ReadFile(cfg.responsesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read response deck: %w", err)
		}
		responses = data
	}

	catalog := &Catalog{
		prompts:   parseDeck(prompts, PromptCard),
		responses: parseDeck(responses, ResponseCard),
	}

	if len(catalog.prompts) == 0 {
		return nil, fmt.Errorf("prompt deck is empty")
	}
	if len(catalog.responses) == 0 {
		return nil, fmt.Errorf("response deck is empty")
	}

	return catalog, nil
}

// Deck holds one room's draw and discard piles. Prompt and response
// discards are kept separate and never mixed. A card is always in
// exactly one of: drawPile, discardPile, or a player's hand.
type Deck struct {
	rng *rand.Rand

	drawPile    []Card
	discardPile []Card

	promptPile    []Card
	promptDiscard []Card
}

// newDeck copies the catalog into fresh piles, shuffled with the given
// seed. Each room seeds its own deck, so rooms are independent and
// tests can inject a fixed seed.
func newDeck(catalog *Catalog, seed int64) *Deck {
	d := &Deck{
		rng:        rand.New(rand.NewSource(seed)),
		drawPile:   make([]Card, len(catalog.responses)),
		promptPile: make([]Card, len(catalog.prompts)),
	}

	copy(d.drawPile, catalog.responses)
	copy(d.promptPile, catalog.prompts)

	d.rng.Shuffle(len(d.drawPile), func(i, j int) {
		d.drawPile[i], d.drawPile[j] = d.drawPile[j], d.drawPile[i]
	})
	d.rng.Shuffle(len(d.promptPile), func(i, j int) {
		d.promptPile[i], d.promptPile[j] = d.promptPile[j], d.promptPile[i]
	})

	return d
}

// available reports how many response cards can still be drawn before
// the deck is exhausted.
func (d *Deck) available() int {
	return len(d.drawPile) + len(d.discardPile)
}

// promptsAvailable reports how many prompt cards can still be drawn.
func (d *Deck) promptsAvailable() int {
	return len(d.promptPile) + len(d.promptDiscard)
}

// reshuffleDiscards moves the response discard pile back into the draw
// pile in a fresh random order.
func (d *Deck) reshuffleDiscards() {
	d.drawPile = append(d.drawPile, d.discardPile...)
	d.discardPile = nil

	d.rng.Shuffle(len(d.drawPile), func(i, j int) {
		d.drawPile[i], d.drawPile[j] = d.drawPile[j], d.drawPile[i]
	})
}

// draw removes n response cards from the draw pile, reshuffling the
// discard pile back in if the draw pile runs out mid-draw. It fails
// with errDeckExhausted before touching any pile if fewer than n cards
// remain in circulation.
func (d *Deck) draw(n int) ([]Card, *gameError) {
	if n > d.available() {
		return nil, errf(errDeckExhausted, "need %d response cards but only %d remain in circulation", n, d.available())
	}

	cards := make([]Card, 0, n)
	for len(cards) < n {
		if len(d.drawPile) == 0 {
			d.reshuffleDiscards()
		}
		cards = append(cards, d.drawPile[len(d.drawPile)-1])
		d.drawPile = d.drawPile[:len(d.drawPile)-1]
	}

	return cards, nil
}

// drawPrompt removes one prompt card, recycling consumed prompts from
// their own discard pile when the prompt pile is empty.
func (d *Deck) drawPrompt() (Card, *gameError) {
	if len(d.promptPile) == 0 {
		if len(d.promptDiscard) == 0 {
			return Card{}, errf(errDeckExhausted, "no prompt cards remain")
		}

		d.promptPile = append(d.promptPile, d.promptDiscard...)
		d.promptDiscard = nil

		d.rng.Shuffle(len(d.promptPile), func(i, j int) {
			d.promptPile[i], d.promptPile[j] = d.promptPile[j], d.promptPile[i]
		})
	}

	card := d.promptPile[len(d.promptPile)-1]
	d.promptPile = d.promptPile[:len(d.promptPile)-1]

	return card, nil
}

// discard returns response cards (played submissions, abandoned hands)
// to the response discard pile.
func (d *Deck) discard(cards ...Card) {
	d.discardPile = append(d.discardPile, cards...)
}

// discardPrompt retires a consumed prompt card.
func (d *Deck) discardPrompt(card Card) {
	d.promptDiscard = append(d.promptDiscard, card)
}
