// Package httpclient provides the HTTP client shared by archive adapters.
//
// This package handles:
//   - GET requests with a fixed small retry budget
//   - Exponential backoff with jitter between attempts
//   - Classification of retryable (network, 5xx, 429) vs definitive
//     (404, 403, 401) failures
//   - JSON response decoding and whole-file downloads
//
// # Usage
//
//	client := httpclient.NewClient(httpclient.Options{
//	    Timeout:       60 * time.Second,
//	    RetryAttempts: 3,
//	})
//
//	var result searchResponse
//	err := client.GetJSON(ctx, queryURL, &result)
//
//	n, err := client.Download(ctx, fileURL, writer)
package httpclient
