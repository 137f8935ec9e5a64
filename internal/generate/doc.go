// Package generate contains adapters for producing token metadata and cover
// art from a free-form concept idea. It abstracts away provider-specific APIs
// so the deployment pipeline only sees a structured metadata record.
package generate
