// Package crawler implements the one-shot listing pipeline: it fetches the
// listing pages, extracts listings, filters out the ones already recorded,
// persists the rest and hands them to the notifier. Concrete fetchers,
// extractors, stores and notifiers live in sibling packages and satisfy the
// interfaces declared here.
package crawler
