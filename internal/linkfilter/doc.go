// Package linkfilter decides which discovered links a site crawl may follow.
//
// It normalizes URLs so that equivalent spellings of a page collapse to one
// key, derives the registrable domain that bounds a crawl, and classifies
// links as downloads or login pages. File extensions settle most download
// checks; only extensionless paths are probed over the network, and probe
// results are cached for the life of the Classifier.
package linkfilter
