// Package live runs a real-time voice consultation against the Gemini live
// API.
//
// # Architecture
//
//   - Session: one connection's lifecycle, transcript reassembly and teardown
//   - Controller: enforces at most one session per consultation
//   - Transport: capture pump (float frames to base64 PCM16) and playback
//   - Scheduler: gapless playback queue with interruption support
//   - Connector: opens the remote session (GenAIConnector in production)
//
// # Data Flow
//
//	CaptureStream → Transport.Pump → Remote.Send
//	Remote events → Session loop → Transcript → types.History
//	                              → Scheduler → Sink
//
// # State Machine
//
//	IDLE → CONNECTING → OPEN → CLOSED
//	  ↑        │
//	  └────────┘ (capture device unavailable)
//
// An interruption while OPEN discards scheduled playback but does not change
// state. CLOSED is terminal; the Controller starts a fresh Session next time.
package live
