// Package address defines the two ways a peer is named in the overlay.
//
// An Address is the overlay name: a fixed-size SHA2-256 digest that serves
// both as a routing key (the destination of an RPC) and as a content key
// (the name a value is stored under). A Locator is the network name: the IP
// and port at which a peer can be reached.
//
// Both types are immutable values; equality is structural and they may be
// used as map keys.
package address
