// Package sshconn connects profiles over SSH with golang.org/x/crypto/ssh
// and adapts the result to the session package's Transport and Channel.
//
// Authentication tries, in order: the profile's identity file (the stored
// password doubles as its passphrase), keys offered by ssh-agent, the
// password, and keyboard-interactive answered with the password. Host keys
// are checked against known_hosts; unknown hosts are added on first use
// unless strict checking is enabled, and a changed key always fails.
package sshconn
