// Package auth issues and verifies station credentials.
//
// A station authenticates with its numeric identity and an opaque token
// issued at provisioning. Only an Argon2id hash of "<id>:<token>" is
// stored; verification is constant-time.
package auth
