package domain

import "errors"

// Sentinel errors shared by the pool and cluster packages. The message
// text is part of the public contract: callers match on it.
var ErrPoolFull = errors.New("Pool is full")
var ErrPoolEnding = errors.New("pool is ending")
var ErrPoolDestroyed = errors.New("Pool was destroyed")
var ErrNotMember = errors.New("not member of pool")
var ErrAlreadyReleased = errors.New("already released")
var ErrTimedOut = errors.New("timed out")
var ErrRedundantFulfill = errors.New("redundant fulfill")
var ErrNoCapablePool = errors.New("No pools can fulfil capability")
var ErrNoPoolAvailable = errors.New("No pools available")
var ErrClusterEnded = errors.New("Cluster is ended")
