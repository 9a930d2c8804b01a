// Package pipeline drives batches of site crawls and post-processes each
// result through a sequence of steps.
//
// A BatchProcessor pulls roots from a source.URLQueueSource and crawls up
// to a fixed number of them at once with errgroup. Every finished crawl
// runs through a Pipeline: ClassifyStep files it under a status,
// PersistStep hands it to a ResultSink, and MetadataStep appends the
// domain's dated history and updates the success rate. A failing step is
// logged and recorded in the batch summary; it never stops other roots.
package pipeline
