// Package main provides the entry point for the sitecrawler CLI.
//
// sitecrawler crawls whole websites from their root URLs, keeps the visible
// text of every same-domain page and files the results in a local SQLite
// database.
//
// Usage:
//
//	sitecrawler crawl https://example.com/
//	sitecrawler crawl --list roots.txt
//	sitecrawler crawl --redis localhost:6379
//
// See --help for all available options.
package main

func main() {
	Execute()
}
