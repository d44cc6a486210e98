package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and clients return these
// (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
//   - ErrNotFound: document missing from the store, or the registry answered
//     404 for a bill detail (which is "no detail available", not a failure)
//   - ErrConflict: write clashed with an existing document
//   - ErrUnavailable: service or resource temporarily unavailable
//   - ErrMalformed: payload fetched but unusable (bad date, missing field)
//
// For validation errors (bad input, missing fields), use pkg/domain-errors.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
	ErrMalformed   = errors.New("malformed payload")
)
