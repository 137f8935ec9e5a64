// Package assistant defines the conversation abstraction used by the bot:
// one remote thread per user, runs that stream events, and tool outputs fed
// back into the run. Concrete providers live in subpackages.
package assistant
