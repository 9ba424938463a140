// Package ui holds the color themes shared by the command-line output and the
// interactive explorer.
package ui
