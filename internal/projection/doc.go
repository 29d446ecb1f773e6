// Package projection implements the Monte Carlo wealth projection engine.
//
// A run simulates SampleCount independent monthly wealth paths, each driven by
// its own seeded Irwin-Hall shock stream, then reduces them to yearly
// percentile bands and a goal outcome. The engine keeps no state between runs.
package projection
