// Package scheduler provisions and prepares guests for a test schedule.
//
// # How It Works
//
// A schedule is processed in two phases. Each phase runs one job per entry on
// a pool sized to the number of entries, waits for every job to finish, and
// only then updates the entries and decides whether the phase failed:
//
//  1. Provisioning: every entry asks the provisioner for a guest matching its
//     testing environment.
//  2. Setup: every entry that got a guest prepares it. Entries that failed to
//     provision are skipped.
//
// Jobs never cancel each other. A failing entry does not stop its siblings,
// so the user always gets the full picture of what failed.
//
// # Failure Selection
//
// When entries fail, each failure is logged against its entry and a single
// error is returned for the phase. Soft failures take precedence over any
// other failure, because they point at something the user can fix. Otherwise
// the first captured failure is returned. Ties are broken by schedule order.
package scheduler
