// Command previewd runs the preview generation daemon and controls it over
// its Unix socket.
package main
