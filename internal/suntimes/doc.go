// Package suntimes looks up sunrise and sunset from the sunrise-sunset.org
// JSON API.
//
//	GET {base}/json?lat=32.957313&lng=-105.742485&date=2026-10-17&formatted=0
//
// Times come back in UTC (ISO 8601) and are returned unchanged; callers
// convert to the site zone. Transient failures are retried with
// exponential backoff; every failure wraps observatory.ErrSunTimesUnavailable.
package suntimes
