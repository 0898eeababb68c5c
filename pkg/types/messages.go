package types

// Client -> Server (websocket)
//
// Start:      {}
// Guess:      word
// Restart:    {}
// Kick:       target_id
// TeamChange: target_id, team ("A" | "B")
// Leave:      {}
// Delete:     {}
//
// The sender's identity is bound to the connection at attach time; commands
// never carry a player id of their own.

// Server -> Client (websocket)
//
// StateSnapshot: state (Snapshot, masked for this recipient)
// Error:         code, error (rejection of the sender's last command only)
//
// Close codes:
//   4000 idle timeout
//   4001 left the lobby
//   4101 lobby deleted
//   4401 kicked by the host
//   4404 unknown player token
