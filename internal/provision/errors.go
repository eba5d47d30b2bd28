package provision

import "errors"

// ErrSuperseded is returned by Ensure when a newer attempt started
// while this one was in flight. The caller should take no action: the
// newer attempt owns the published outcome.
var ErrSuperseded = errors.New("provisioning attempt superseded")
