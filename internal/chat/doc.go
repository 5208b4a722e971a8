// Package chat implements the session and broadcast core of the radon chat room.
//
// A Registry holds the claimed display names and the Broadcaster. Each accepted
// connection is handed to a Session as a Stream; the session negotiates a
// unique name, relays lines in both directions until either side fails, then
// announces the departure and releases the name. The package never listens on
// the network itself.
package chat
