// Package telemetry ships prompt events and user feedback to the analytics
// collector.
//
// Delivery never affects the LLM call that produced an event: failures go
// through an ErrorPolicy that decides what, if anything, gets logged.
package telemetry
