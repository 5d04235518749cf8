// Package testutil contains helper builders and shared suites used across
// tests to reduce boilerplate when constructing transcripts and checking
// store implementations. They are not intended for production usage.
package testutil
