// Package ratetest measures how a target holds up under concurrent scans.
//
// TestConcurrency runs one trial per worker count from 1 to the maximum.
// Each worker performs a fixed number of sequential aggregated scans, and
// every outcome adds a penalty: 2 for Offline or DecodeError, 1 for
// NoServices or a zero overall magnification, 0 otherwise. A scan counts as
// two exchange units, so a trial of j workers covers 2*j*ScansPerWorker units
// and LossRate is the penalty over that total.
//
// Sustain repeats scans back to back for a fixed duration and reports the
// achieved rate.
package ratetest
