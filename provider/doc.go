// Package provider defines the contract every backend family implements and the canonical
// schema adapters translate into.
//
// An Adapter splits the login into AcquirePreconditions and SubmitCredentials so the session
// state machine in package auth can observe each phase. BeginLogin runs both phases for callers
// that do not need that granularity.
//
// Fetch returns a Response whose Payload is one of *Timetable, *Grades, *Homework or
// *SchoolLife, whatever backend produced it. IsExpired is the only place that knows how a given
// backend says "your session is gone".
package provider
