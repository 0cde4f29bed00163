// Package daycycle runs one observing night from start to safe finish.
//
// A cycle looks up today's sunrise and sunset and tomorrow's sunrise. It
// refuses to start inside the blackout buffer after today's sunrise or
// before sunset, waits for dark, starts the mount and dome, checks health,
// loads the plan and hands it to the executor. The night is cut short a
// configured margin before tomorrow's sunrise. Whatever happens, including
// cancellation and panics, the cycle ends in ShuttingDown and then Aborted
// or Completed:
//
//	Idle → AwaitingObservationWindow → StartingUp → HealthChecking → Observing
//	                    │                  │              │             │
//	                    └──────────────────┴──────┬───────┴─────────────┘
//	                                              ▼
//	                                        ShuttingDown → Aborted | Completed
//
// RunCycle runs exactly one cycle; nightly operation comes from invoking it
// again (systemd timer, cron).
package daycycle
