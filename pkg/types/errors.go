// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Section writer conditions shared by the in-memory session and the store,
// so callers can test for them with errors.Is whichever side reported them.
var (
	// ErrGenerationInProgress rejects a second generation for a section
	// whose first has not completed.
	ErrGenerationInProgress = errors.New("generation already in progress")

	// ErrStaleResult reports a write dropped because the section changed
	// after the writer read it.
	ErrStaleResult = errors.New("generation result is stale")
)
