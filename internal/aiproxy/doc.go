// Package aiproxy calls the remote inference endpoint and folds its answer,
// delivered either as one JSON body or as an event stream, into an
// [AnswerResult].
//
// [Client.Dispatch] issues the request and classifies the response. When the
// endpoint streams, [Decode] reads the body incrementally through a
// [LineBuffer] and reports every cumulative answer to the caller's
// [ProgressFunc]. Only rate limiting reaches the caller as a distinct outcome;
// every other failure degrades to [ApologyMessage].
package aiproxy
