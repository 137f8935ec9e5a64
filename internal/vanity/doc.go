// Package vanity implements the bounded concurrent brute-force search for a
// keypair whose base58 public key ends with a fixed suffix. Workers share
// nothing beyond an atomic attempt counter and a stop flag; the first worker
// to satisfy the predicate wins and the rest stop cooperatively.
package vanity
