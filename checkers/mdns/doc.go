// Package mdns measures how much traffic an mDNS/DNS-SD responder returns
// for the queries sent to it.
//
// A scan runs in two stages. Stage 1 sends the service-type enumeration
// query; stage 2 asks for every discovered service name with ANY queries,
// either batched per response section (Aggregated) or one query per name
// (Separate). The byte counts of every exchange feed the magnification
// figures in Result, and every decoded record is forwarded to the sink.
//
// Scan always returns exactly one Outcome; callers switch on Outcome.Status.
package mdns
