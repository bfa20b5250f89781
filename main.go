// Spectra crawls a curated roster of newspapers across countries, translates
// and embeds their headlines, discovers daily topics, and analyzes how each
// country's coverage maps onto a political spectrum.
package main

import "spectra/cmd/handlers"

func main() {
	handlers.Execute()
}
