// Package cmd implements the tripmailctl command tree.
package cmd
