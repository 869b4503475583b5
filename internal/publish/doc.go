// Package publish defines the uniform platform adapter contract and the
// machinery shared by all adapters: the publish error taxonomy, the static
// adapter registry, the transient-retry policy, and the asynchronous media
// processing protocol (create container → poll → publish) used by platforms
// that process media out-of-band.
package publish
