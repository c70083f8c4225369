// Package world holds the mutable game state scripts act on: flag and
// variable memory, the entities of the current scene, the party with
// its battle model, inventory and currency, and the persisted odds and
// ends (play time, random state, resume point). A State is built by
// NewGame or Load, never ambiently; the scheduler is single-threaded,
// so State does no locking.
package world
