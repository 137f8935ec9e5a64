// Package chain houses ledger connectivity for the deployment pipeline: the
// balance oracle consulted before a launch and the publisher that submits the
// create-and-buy transaction. Drivers exist for Solana JSON-RPC (production)
// and EVM chains via go-ethereum (treasury balance checks), wired together by
// a registry loaded from a YAML chain definition file.
package chain
