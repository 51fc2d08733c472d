// Package crawler fetches listing pages and walks their pagination. It owns
// the page Fetcher contract, the retry and politeness wrapper around it, and
// the Paginator that collects item links until a source runs dry.
package crawler
