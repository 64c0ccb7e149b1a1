// Package controller implements the three-state anti-park loop at the heart
// of wdantiparkd.
//
// In ANTI-PARK the controller writes a touch file every tick so the drive
// head never rests long enough to park; read activity extends the state. In
// PARKED it stops touching so the head can park, and doubles the next
// anti-park window whenever activity interrupts the quiet period. In IDLE
// it performs no I/O at all, leaving the drive free to spin down until
// activity returns.
//
// The loop is single-threaded and tick-driven; collaborators (clock,
// activity source, disk operations) are injected so the machine can run
// against simulated time in tests.
package controller
