// Package source supplies root URLs to the batch driver.
//
// A URLQueueSource hands out one root per call to Next until it runs dry.
// Roots can come from a fixed list (command-line arguments), a text file
// with one URL per line, or a Redis list that other processes fill with
// the enqueue command.
package source
