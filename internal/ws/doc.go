// Package ws provides the real-time presence and broadcast hub for
// collaborative editing sessions.
//
// The package implements:
//   - Registry: maps project IDs to rooms of live connections; rooms are created
//     on first join and dropped when the last member leaves
//   - Client: one participant's connection with its resolved identity and a
//     bounded outbound mailbox
//   - Handler: resolves identity at handshake, runs the join/leave protocol,
//     and routes inbound messages
//   - Service: owns the registry and handler for the lifetime of the server
//
// Presence is rebuilt by every client from user_joined and user_left messages:
// a newcomer receives one user_joined per existing member, then everybody,
// newcomer included, receives the newcomer's user_joined. Edit, cursor, typing,
// save and chat messages are relayed to the rest of the room untouched apart
// from the projectId stamp. The hub never merges concurrent edits.
package ws
