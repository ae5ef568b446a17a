// Package games holds design notes for the games served by cardparty.
package games

// Each round, one player is the judge and draws a prompt card, read out to everyone
// The other players each hold a hand of response cards, dealt back up to a fixed size every round
// Non-judge players secretly submit one response card from their hand as the answer to the prompt
// Once every connected non-judge player has submitted, the judge sees all submissions and picks a winner
// The winner scores a point, submitted cards are discarded, and the judge role rotates in join order
// A room is addressed by its id in the URL; anybody with the link (or its QR code) can join

// Display formats:
// Prompt card shown large at the top, the player's own hand fanned below it
// During judging, submissions shown face-up to the judge only, in arrival order

// Implementation details:
// - One websocket per player: /ws/:roomid, JSON action frames in, personalized state frames out
// - Players are identified by display name within a room; reconnecting with the same name resumes the seat
// - Each room runs on its own goroutine, so concurrent submissions are serialized per room

// How to play
// - Open a room link, pick a name, and wait in the lobby
// - Any player can start the game once at least three people are connected
// - The first player to have joined judges the first round; the role rotates from there
// - Scores live as long as the room does; an empty room is torn down after a few minutes
