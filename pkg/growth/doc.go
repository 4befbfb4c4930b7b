// Package growth maps streak length to the seedling/growing/flourishing
// visual progression tier.
package growth
