/*
Package insert canonicalises insert options before they reach the driver and normalises the
results the driver hands back.

Both transforms are pure apart from the deprecation diagnostic NormalizeOptions sends through
the o11y provider in the context. Neither ever fails.
*/
package insert
