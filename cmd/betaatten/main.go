// Package main provides the entry point for the betaatten CLI.
//
// betaatten clusters pixel detector frames recorded behind absorbers of
// increasing thickness, classifies the clusters by particle type and fits
// the exponential attenuation of the beta count.
//
// Usage:
//
//	betaatten process <data-dir> -o <output-dir>
//	betaatten fit <beta_results.json>
//	betaatten runs --db runs.db
//
// See --help for all available options.
package main

func main() {
	Execute()
}
