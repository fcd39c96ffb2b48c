// Package tensai is the composition root for the tensai flashcard
// data layer.
//
// It connects the domain store (card CRUD, overdueness ranking, change
// notification) with the infrastructure adapters (file-backed document
// store, replication) using the Hexagonal Architecture pattern.
//
// Philosophy:
//
// Tensai is an offline-first spaced-repetition engine. Cards live in a
// local document store as two linked records (content and progress)
// with independent lifecycles, so the high-frequency progress updates
// of a review session never rewrite card content and never conflict
// with content edits syncing in from another device.
//
// Features:
//
//   - **Split records**: card content and review progress are separate
//     documents sharing an identifier suffix, joined on read.
//   - **Overdueness ranking**: a materialized index orders due cards,
//     rebuilt only when its definition (or the review time) changes.
//   - **Coalesced change events**: one event per logical card mutation,
//     no matter how many underlying documents it touched.
//   - **Replication**: checkpointed bi-directional sync between stores,
//     with per-record-type conflict resolution.
//   - **Review sessions**: a pure state machine over seeded randomness,
//     driven by a selector that performs the storage effects.
//
// Usage:
//
//	svc, err := tensai.New(ctx, "./cards",
//		tensai.WithLogger(logger),
//	)
//
//	card, err := svc.PutCard(ctx, tensai.CardPatch{
//		Question: tensai.String("あたま"),
//		Answer:   tensai.String("head"),
//	})
package tensai
