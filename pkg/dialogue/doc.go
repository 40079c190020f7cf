// Package dialogue defines the closed event and state registries of the
// cooking assistant and the deterministic transition table between them.
//
// The table is data: it is built from a list of (state, event, next state)
// triples and validated once at startup. Everything that decides what text a
// transition produces lives elsewhere (see package assist).
//
//	comparing --ask_how_to_fix--> fixing_problem
//	comparing --step_incorrect--> fixing_problem   (synthesized from a scene tick)
//	handling_disagreement --agree--> comparing
//
// Unlisted pairs are rejected with ErrInvalidTransition; callers decide
// whether to ignore or surface them.
package dialogue
