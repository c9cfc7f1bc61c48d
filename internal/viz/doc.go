// Package viz renders simulation output in the terminal.
//
//   - [Canvas]: braille pixel canvas; [Projector] maps the x–z plane of a
//     region onto it for paths and wall impact positions
//   - [Series], [Histogram], [Profile]: asciigraph line plots
//   - [SweepProgress]: Bubble Tea model fed by batch progress callbacks
//
// Styles are shared lipgloss definitions so every command looks the same.
package viz
