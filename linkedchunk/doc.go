// Package linkedchunk is documented in linkedchunk.go.
package linkedchunk
