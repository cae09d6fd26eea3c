package hub

import "errors"

// ErrHubTimeout is returned by Pull when the hub does not reply within the
// internal deadline (spec §5, §7): handlers map this to RPC error -32603
// with message "Unable to fetch metrics from hub".
var ErrHubTimeout = errors.New("hub: timed out waiting for reply")
