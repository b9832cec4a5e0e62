// Package ui styles the CLI's terminal output with lipgloss.
//
// A [Palette] colors status lines and renders [Summary] blocks, the boxed key/value reports printed after an
// import, a sync or a schema check. Styling can be turned off for pipes and tests with [Plain].
package ui
