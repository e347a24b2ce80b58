// Package schedule holds the test schedule data model: testing environments,
// guests, schedule entries and their stages.
package schedule
