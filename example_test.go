package tensai_test

import (
	"context"
	"fmt"
	"log"
	"os"

	tensai "github.com/birchill/10sai-sub003"
)

// Example_basic demonstrates how to initialize a card store, add a card,
// and read it back.
func Example_basic() {
	// Create a temporary directory for the example
	tmpDir, err := os.MkdirTemp("", "tensai-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	// Initialize the card store targeting the temporary directory.
	svc, err := tensai.New(ctx, tmpDir)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	// 1. Add a card
	card, err := svc.PutCard(ctx, tensai.CardPatch{
		Question: tensai.String("What does 頭 mean?"),
		Answer:   tensai.String("head"),
		Tags:     []string{"anatomy"},
	})
	if err != nil {
		log.Fatal(err)
	}

	// 2. Read it back
	got, err := svc.GetCard(ctx, card.ID)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("Answer: %s\n", got.Answer)
	fmt.Printf("Level: %d\n", got.Progress.Level)
	// Output:
	// Answer: head
	// Level: 0
}

// Example_review demonstrates running a review session over the cards
// that are currently available.
func Example_review() {
	tmpDir, err := os.MkdirTemp("", "tensai-review-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	svc, err := tensai.New(ctx, tmpDir)
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	for _, q := range []string{"one", "two", "three"} {
		if _, err := svc.PutCard(ctx, tensai.CardPatch{Question: tensai.String(q)}); err != nil {
			log.Fatal(err)
		}
	}

	// Never-reviewed cards are the "new" pool.
	fresh, err := svc.GetCards(ctx, tensai.GetCardsOptions{Type: tensai.QueryNew})
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("New cards: %d\n", len(fresh))
	// Output:
	// New cards: 3
}
