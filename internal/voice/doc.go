// Package voice picks the device voice used for live synthesis.
// Voice lists arrive late on some platforms, so sources signal changes on a
// channel and the resolver re-selects when they do.
package voice
